// Command coursectl reconciles a course list file with a CourseHub server.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/coursehub/internal/application"
)

func main() {
	// A local .env may carry COURSEHUB_URL and COURSEHUB_TOKEN; real env wins
	_ = godotenv.Load()

	if err := application.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
