package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"beatrice-server-go/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	issueToken := flag.String("issue-token", "", "print a signed API token for the given subject and exit")
	noDotEnv := flag.Bool("no-dotenv", false, "do not load .env")
	flag.Parse()

	opts := bootstrap.Options{ConfigPath: *configPath, DisableDotEnv: *noDotEnv}

	if *issueToken != "" {
		token, err := bootstrap.IssueToken(opts, *issueToken)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "issue token failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	fmt.Printf("[%s] [INFO] [引导] 开始启动 beatrice-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background(), opts); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "beatrice-server failed: %v\n", err)
		os.Exit(1)
	}
}
