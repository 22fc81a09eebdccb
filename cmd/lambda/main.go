package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"

	"github.com/saulo-duarte/chronos-goals/internal/config"
	"github.com/saulo-duarte/chronos-goals/internal/container"
)

func main() {
	ctx := context.Background()

	c, err := container.New(ctx)
	if err != nil {
		config.Logger().WithError(err).Fatal("Failed to build container")
	}
	if err := c.Migrate(ctx); err != nil {
		config.Logger().WithError(err).Fatal("Failed to migrate")
	}
	c.StartBackground(ctx)

	adapter := chiadapter.New(c.Router())
	lambda.Start(adapter.ProxyWithContext)
}
