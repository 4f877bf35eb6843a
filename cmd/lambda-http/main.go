package main

// Lambda entrypoint behind an API Gateway HTTP API:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"coverletter-backend/internal/bootstrap"
	"coverletter-backend/internal/shared/config"
)

var (
	buildOnce sync.Once
	buildErr  error
	proxy     *ginadapter.GinLambdaV2
)

func build() {
	app, err := bootstrap.Build(config.Load())
	if err != nil {
		buildErr = err
		return
	}
	proxy = ginadapter.NewV2(app.Router)
}

func handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	buildOnce.Do(build)
	if buildErr != nil {
		log.Printf("bootstrap error: %v", buildErr)
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"error":{"code":"bootstrap_failed","message":"service unavailable"}}`,
			Headers:    map[string]string{"Content-Type": "application/json"},
		}, nil
	}
	// Compiled PDFs come back base64-encoded by the adapter.
	return proxy.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(handle)
}
