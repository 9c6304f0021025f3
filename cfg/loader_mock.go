package cfg

type MockLoader struct{}

func NewMockLoader() (*MockLoader, error) {
	return &MockLoader{}, nil
}

func (yl *MockLoader) Load() (*Config, error) {
	return &Config{
		// App
		App: App{
			Name:    "birdspider",
			Version: "0.0.1",
		},

		// Mysql
		Mysql: Mysql{
			Host:                  "127.0.0.1",
			Password:              "root",
			Username:              "root",
			Port:                  "3306",
			Database:              "birdspider",
			MaxIdleConnection:     10,
			MaxOpenConnection:     100,
			MaxLifeTimeConnection: 3600,
		},

		// Redis
		Redis: Redis{
			Host:     "127.0.0.1",
			Port:     "6379",
			Password: "",
			Db:       0,
		},

		// Kafka
		Kafka: Kafka{
			Brokers:       []string{"127.0.0.1:9092"},
			TaskTopic:     "birdspider-tasks",
			StreamTopic:   "birdspider-stream",
			ConsumerGroup: "birdspider-workers",
		},

		// TwitterApi
		TwitterApi: TwitterApi{
			ApiUrl:           "https://api.twitter.com/1.1",
			BearerToken:      "",
			CredentialHandle: "local_",
			PageSize:         200,
			QuotaMarginSec:   30,
		},

		// Solr
		Solr: Solr{
			Url:  "http://127.0.0.1:8983/solr",
			Core: "tweets",
		},

		// Crawler
		Crawler: Crawler{
			PollIntervalSec:    30,
			MaxTweets:          3000,
			SeedMaxTweets:      1000,
			MaxFriends:         2000,
			MaxFollowers:       2000,
			UnderScrapedFactor: 2,
			CandidateLimit:     20,
			StoreRetryCount:    50,
			StoreRetryDelaySec: 2,
			StreamBatchSize:    100,
			StreamBatchWaitSec: 5,
		},
	}, nil
}
