package model

import (
	"time"

	"github.com/augeas/BirdSpider/internal/twitterapi"
)

// RenderUser đổi một user từ API response thành row của bảng users
func RenderUser(user twitterapi.UserResponse, scrapedAt time.Time) User {
	at := scrapedAt
	return User{
		Handle:          TruncateString(user.ScreenName, 250),
		TwitterID:       user.ID,
		TwitterIDStr:    user.IDStr,
		Name:            TruncateString(user.Name, 250),
		Description:     user.Description,
		Location:        TruncateString(user.Location, 250),
		Lang:            user.Lang,
		Url:             TruncateString(user.URL, 500),
		IsoTime:         ParseTwitterTime(user.CreatedAt),
		FollowersCount:  user.FollowersCount,
		FriendsCount:    user.FriendsCount,
		StatusesCount:   user.StatusesCount,
		ListedCount:     user.ListedCount,
		FavouritesCount: user.FavouritesCount,
		Verified:        user.Verified,
		Protected:       user.Protected,
		GeoEnabled:      user.GeoEnabled,
		LastScraped:     &at,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

// RenderUsers đổi một batch user từ API response
func RenderUsers(users []twitterapi.UserResponse, scrapedAt time.Time) []User {
	rows := make([]User, 0, len(users))
	for _, user := range users {
		rows = append(rows, RenderUser(user, scrapedAt))
	}
	return rows
}

// BareUser tạo một user reference chỉ có handle, chưa được lookup đầy đủ
func BareUser(handle string, at time.Time) User {
	return User{
		Handle:    TruncateString(handle, 250),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// RenderPost đổi một tweet từ API response thành row của bảng posts
func RenderPost(tweet twitterapi.TweetResponse, kind string, scrapedAt time.Time) Post {
	at := scrapedAt
	post := Post{
		Kind:                kind,
		IDStr:               tweet.IDStr,
		TwitterID:           tweet.ID,
		Text:                TruncateString(tweet.Text, 65000),
		Source:              TruncateString(tweet.Source, 500),
		Lang:                tweet.Lang,
		IsoTime:             ParseTwitterTime(tweet.CreatedAt),
		FavoriteCount:       tweet.FavoriteCount,
		RetweetCount:        tweet.RetweetCount,
		PossiblySensitive:   tweet.PossiblySensitive,
		InReplyToStatusID:   tweet.InReplyToStatusID,
		InReplyToScreenName: tweet.InReplyToScreenName,
		LastScraped:         &at,
		CreatedAt:           at,
		UpdatedAt:           at,
	}
	if tweet.Coordinates != nil && len(tweet.Coordinates.Coordinates) == 2 {
		lng := tweet.Coordinates.Coordinates[0]
		lat := tweet.Coordinates.Coordinates[1]
		post.Longitude = &lng
		post.Latitude = &lat
	}
	return post
}

// BarePost tạo một post reference chỉ có id, dùng cho reply target chưa crawl
func BarePost(kind, idStr string, at time.Time) Post {
	return Post{
		Kind:      kind,
		IDStr:     idStr,
		CreatedAt: at,
		UpdatedAt: at,
	}
}
