package main

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awskms"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssns"

	"github.com/platform-team/observability/config"
)

type ObservabilityProps struct {
	awscdk.StackProps
	Cfg *config.Config
}

// CoreResources is what the core stack exports to the others.
type CoreResources struct {
	stack         awscdk.Stack
	key           awskms.Key
	archiveBucket awss3.Bucket
	eventBus      awsevents.EventBus

	// logGroups is keyed by short name (platform, alert-processor, ...).
	logGroups map[string]awslogs.LogGroup
}

// AlertingResources is what the alerting stack exports to the others.
type AlertingResources struct {
	stack          awscdk.Stack
	topics         map[string]awssns.ITopic
	alertProcessor awslambda.Function
}
