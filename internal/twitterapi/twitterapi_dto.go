// Gói twitterapi cung cấp một caller cho Twitter REST API v1.1.
// Chuyển đổi phản hồi api thành các cấu trúc cố định, không truyền dict động.

package twitterapi

type UserResponse struct {
	ID                   int64  `json:"id"`
	IDStr                string `json:"id_str"`
	ScreenName           string `json:"screen_name"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	Location             string `json:"location"`
	Lang                 string `json:"lang"`
	URL                  string `json:"url"`
	CreatedAt            string `json:"created_at"`
	FollowersCount       int64  `json:"followers_count"`
	FriendsCount         int64  `json:"friends_count"`
	StatusesCount        int64  `json:"statuses_count"`
	ListedCount          int64  `json:"listed_count"`
	FavouritesCount      int64  `json:"favourites_count"`
	Verified             bool   `json:"verified"`
	Protected            bool   `json:"protected"`
	GeoEnabled           bool   `json:"geo_enabled"`
	UtcOffset            *int64 `json:"utc_offset"`
	TimeZone             string `json:"time_zone"`
	ProfileImageUrl      string `json:"profile_image_url"`
	ProfileImageUrlHttps string `json:"profile_image_url_https"`
}

type MentionEntity struct {
	ID         int64  `json:"id"`
	IDStr      string `json:"id_str"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`
}

type HashtagEntity struct {
	Text string `json:"text"`
}

type URLEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	DisplayURL  string `json:"display_url"`
}

type MediaEntity struct {
	IDStr         string `json:"id_str"`
	MediaURL      string `json:"media_url"`
	MediaURLHttps string `json:"media_url_https"`
	Type          string `json:"type"`
}

type TweetEntities struct {
	UserMentions []MentionEntity `json:"user_mentions"`
	Hashtags     []HashtagEntity `json:"hashtags"`
	Urls         []URLEntity     `json:"urls"`
}

type ExtendedEntities struct {
	Media []MediaEntity `json:"media"`
}

type Coordinates struct {
	// GeoJSON order: longitude then latitude
	Coordinates []float64 `json:"coordinates"`
	Type        string    `json:"type"`
}

type TweetResponse struct {
	ID                   int64             `json:"id"`
	IDStr                string            `json:"id_str"`
	Text                 string            `json:"text"`
	Source               string            `json:"source"`
	Lang                 string            `json:"lang"`
	CreatedAt            string            `json:"created_at"`
	FavoriteCount        int64             `json:"favorite_count"`
	RetweetCount         int64             `json:"retweet_count"`
	Favorited            bool              `json:"favorited"`
	Retweeted            bool              `json:"retweeted"`
	PossiblySensitive    bool              `json:"possibly_sensitive"`
	InReplyToStatusID    *int64            `json:"in_reply_to_status_id"`
	InReplyToStatusIDStr string            `json:"in_reply_to_status_id_str"`
	InReplyToUserIDStr   string            `json:"in_reply_to_user_id_str"`
	InReplyToScreenName  string            `json:"in_reply_to_screen_name"`
	QuotedStatusIDStr    string            `json:"quoted_status_id_str"`
	User                 *UserResponse     `json:"user"`
	RetweetedStatus      *TweetResponse    `json:"retweeted_status"`
	QuotedStatus         *TweetResponse    `json:"quoted_status"`
	Entities             *TweetEntities    `json:"entities"`
	ExtendedEntities     *ExtendedEntities `json:"extended_entities"`
	Coordinates          *Coordinates      `json:"coordinates"`
	// Có thể thêm nhiều trường tại đây
}

// ConnectionPage là một trang kết quả friends/list hoặc followers/list
type ConnectionPage struct {
	Users          []UserResponse `json:"users"`
	NextCursor     int64          `json:"next_cursor"`
	PreviousCursor int64          `json:"previous_cursor"`
}
