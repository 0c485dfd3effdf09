package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/joho/godotenv"

	"github.com/platform-team/observability/config"
)

func main() {
	defer jsii.Close()

	// Load .env variables one time
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or could not be loaded", err)
	}

	app := awscdk.NewApp(nil)

	environment := stackContext(app, "environment", "dev")
	cfg, err := config.Load(environment, os.Getenv("OBS_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	props := &ObservabilityProps{
		StackProps: awscdk.StackProps{
			Env:         env(app),
			Description: jsii.String(fmt.Sprintf("Observability platform (%s)", environment)),
			Tags:        stackTags(cfg),
		},
		Cfg: cfg,
	}

	core := NewCoreStack(app, fmt.Sprintf("ObservabilityCore-%s", environment), props)
	alerting := NewAlertingStack(app, fmt.Sprintf("ObservabilityAlerting-%s", environment), props, core)
	NewDashboardStack(app, fmt.Sprintf("ObservabilityDashboards-%s", environment), props)
	NewAutomationStack(app, fmt.Sprintf("ObservabilityAutomation-%s", environment), props, core, alerting)
	NewCostStack(app, fmt.Sprintf("ObservabilityCost-%s", environment), props, core, alerting)
	NewLogAnalysisStack(app, fmt.Sprintf("ObservabilityLogs-%s", environment), props, core)

	app.Synth(nil)
}

// stackContext reads a value from -c key=value, falling back to a default.
func stackContext(app awscdk.App, key, fallback string) string {
	if v, ok := app.Node().TryGetContext(&key).(string); ok && v != "" {
		return v
	}
	return fallback
}

func stackTags(cfg *config.Config) *map[string]*string {
	tags := map[string]*string{}
	for k, v := range cfg.Tags {
		tags[k] = jsii.String(v)
	}
	return &tags
}

func env(app awscdk.App) *awscdk.Environment {
	account := stackContext(app, "account", os.Getenv("CDK_DEFAULT_ACCOUNT"))
	region := stackContext(app, "region", config.EnvOr("CDK_DEFAULT_REGION", "us-east-1"))
	return &awscdk.Environment{
		Account: jsii.String(account),
		Region:  jsii.String(region),
	}
}
