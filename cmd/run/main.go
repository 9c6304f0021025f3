package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/augeas/BirdSpider/api"
	"github.com/augeas/BirdSpider/internal/cluster"
)

func main() {
	seed := flag.String("seed", "", "Seed a full crawl chain for this user handle")
	followUp := flag.Bool("follow-up", false, "Open a user scrape session around the seed once seeded")
	defaultScrape := flag.Bool("default-scrape", false, "Start the graph-wide default scrape loop")
	latest := flag.Bool("latest", false, "Prefer recently crawled users over stale ones in the default scrape")
	userScrape := flag.String("user-scrape", "", "Start a user scrape session around this handle")
	clusterize := flag.Bool("cluster", false, "Enqueue a clustering run over the current graph")
	criteria := flag.String("criteria", cluster.CriteriaMutualFollows, "Clustering criteria (mutual_follows, shared_friends)")
	stop := flag.Bool("stop", false, "Stop all running scrape sessions")
	status := flag.Bool("status", false, "Print the current scrape session status")
	flag.Parse()

	ctx := context.Background()
	crawlerApi := api.NewCrawlerAPI()
	if err := crawlerApi.Initialize(ctx); err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer crawlerApi.Close()

	var msg string
	var err error

	switch {
	case *stop:
		msg, err = crawlerApi.StopScrape()

	case *status:
		printStatus(crawlerApi)
		return

	case *seed != "":
		msg, err = crawlerApi.SeedUser(*seed, *followUp)

	case *defaultScrape:
		msg, err = crawlerApi.StartDefaultScrape(*latest)

	case *userScrape != "":
		msg, err = crawlerApi.StartUserScrape(*userScrape)

	case *clusterize:
		msg, err = crawlerApi.ClusterGraph(*criteria)

	default:
		fmt.Println("Nothing to do. Use -seed, -default-scrape, -user-scrape, -cluster, -status or -stop.")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(msg)
}

func printStatus(crawlerApi *api.CrawlerAPI) {
	status, err := crawlerApi.GetStatus()
	if err != nil {
		fmt.Printf("Failed to read status: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Mode:             %s\n", orIdle(status.Mode))
	fmt.Printf("Default scrape:   %s\n", orIdle(status.DefaultScrape))
	fmt.Printf("User scrape:      %s\n", orIdle(status.UserScrape))
	fmt.Printf("Scrape user:      %s\n", orIdle(status.ScrapeUser))
	fmt.Printf("Friends job:      %s\n", orIdle(status.FriendsScrape))
	fmt.Printf("Followers job:    %s\n", orIdle(status.FollowersScrape))
	fmt.Printf("Tweets job:       %s\n", orIdle(status.TweetsScrape))
	fmt.Printf("Database:         %s\n", status.DatabaseStatus)
	fmt.Printf("Cache:            %s\n", status.CacheStatus)
}

// orIdle đổi cờ rỗng thành chữ cho dễ đọc
func orIdle(flag string) string {
	if flag == "" {
		return "idle"
	}
	return flag
}
