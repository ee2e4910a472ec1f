package main

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"hashhost/internal/app"
	"hashhost/internal/config"
	"hashhost/internal/logging"
)

// The function never exits on bad configuration: the API answers with a
// configuration error while the static site keeps working.
func main() {
	cfg, cfgErr := config.Load()
	logging.Setup(cfg.LogLevel)
	if cfgErr != nil {
		slog.Error("configuration invalid", "err", cfgErr)
	}
	h := app.NewHandler(cfg, cfgErr)

	switch cfg.LambdaPayloadVersion {
	case "2.0":
		adapter := httpadapter.NewV2(h)
		lambda.Start(func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
			return adapter.ProxyWithContext(ctx, req)
		})
	default:
		adapter := httpadapter.New(h)
		lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return adapter.ProxyWithContext(ctx, req)
		})
	}
}
