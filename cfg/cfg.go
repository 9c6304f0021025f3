package cfg

type (
	App struct {
		Name    string
		Version string
	}

	Mysql struct {
		Host                  string
		Port                  string
		Username              string
		Password              string
		Database              string
		MaxIdleConnection     int
		MaxOpenConnection     int
		MaxLifeTimeConnection int
	}

	Redis struct {
		Host     string
		Port     string
		Password string
		Db       int
	}

	Kafka struct {
		Brokers       []string
		TaskTopic     string
		StreamTopic   string
		ConsumerGroup string
	}

	TwitterApi struct {
		ApiUrl           string
		BearerToken      string
		CredentialHandle string
		PageSize         int
		QuotaMarginSec   int
	}

	Solr struct {
		Url  string
		Core string
	}

	Crawler struct {
		PollIntervalSec    int
		MaxTweets          int
		SeedMaxTweets      int
		MaxFriends         int
		MaxFollowers       int
		UnderScrapedFactor int
		CandidateLimit     int
		StoreRetryCount    int
		StoreRetryDelaySec int
		StreamBatchSize    int
		StreamBatchWaitSec int
	}
)

type Config struct {
	App        App
	Mysql      Mysql
	Redis      Redis
	Kafka      Kafka
	TwitterApi TwitterApi
	Solr       Solr
	Crawler    Crawler
}
