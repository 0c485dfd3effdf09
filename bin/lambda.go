package main

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3assets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssqs"
	"github.com/aws/jsii-runtime-go"

	"github.com/platform-team/observability/config"
)

// Lambda related resources
func createHandlerFunction(stack awscdk.Stack, id, asset string, cfg *config.Config, environment map[string]*string) awslambda.Function {
	// Create DLQ
	deadLetterQueue := createDeadLetterQueue(stack, id)

	env := map[string]*string{
		"ENVIRONMENT": jsii.String(cfg.Environment),
		"LOG_LEVEL":   jsii.String(cfg.Logging.Level),
	}
	for k, v := range environment {
		env[k] = v
	}

	lambdaFunction := awslambda.NewFunction(stack, jsii.String(id), &awslambda.FunctionProps{
		Runtime:         awslambda.Runtime_PROVIDED_AL2023(),
		Handler:         jsii.String("bootstrap"),
		RetryAttempts:   jsii.Number(2),
		MemorySize:      jsii.Number(256),
		Timeout:         awscdk.Duration_Minutes(jsii.Number(5)),
		Architecture:    awslambda.Architecture_X86_64(),
		DeadLetterQueue: deadLetterQueue,
		Code:            awslambda.Code_FromAsset(jsii.String(lambdaAssetDir(asset)), &awss3assets.AssetOptions{}),
		Environment:     &env,
		Tracing:         awslambda.Tracing_ACTIVE,
	})

	configureHandlerLogsIAM(stack, lambdaFunction)

	return lambdaFunction
}

func createDeadLetterQueue(stack awscdk.Stack, id string) awssqs.IQueue {
	return awssqs.NewQueue(stack, jsii.String(id+"DLQ"), &awssqs.QueueProps{
		RetentionPeriod: awscdk.Duration_Days(jsii.Number(7)),
	})
}

// Grant CloudWatch Logs permissions
func configureHandlerLogsIAM(stack awscdk.Stack, lambdaFunction awslambda.Function) {
	lambdaFunction.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect: awsiam.Effect_ALLOW,
		Actions: jsii.Strings(
			"logs:CreateLogGroup",
			"logs:CreateLogStream",
			"logs:PutLogEvents",
		),
		Resources: jsii.Strings(
			fmt.Sprintf("arn:aws:logs:%s:%s:log-group:/aws/lambda/*:*",
				*stack.Region(), *stack.Account()),
		),
	}))
}
