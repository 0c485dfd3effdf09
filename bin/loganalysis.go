package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awseventstargets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awskinesis"
	"github.com/aws/aws-cdk-go/awscdk/v2/awskinesisfirehose"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/platform-team/observability/config"
)

// NewLogAnalysisStack provisions the log ingestion pipeline: the Kinesis
// stream, the Firehose delivery into the archive bucket with the
// transformation Lambda, and the scheduled analysis jobs.
func NewLogAnalysisStack(scope constructs.Construct, id string, props *ObservabilityProps, core *CoreResources) awscdk.Stack {
	stack := initializeStack(scope, id, props)

	stream := createLogStream(stack, props, core)
	processor := createLogProcessor(stack, props)
	createLogDeliveryStream(stack, props, core, stream, processor)
	createLogInsightsRunner(stack, props, core)
	createLogAnomalyDetector(stack, props, core)

	createLogAnalysisOutputs(stack, stream)
	return stack
}

func createLogStream(stack awscdk.Stack, props *ObservabilityProps, core *CoreResources) awskinesis.Stream {
	shards := 1.0
	if props.Cfg.Environment == config.EnvProd {
		shards = 2
	}

	return awskinesis.NewStream(stack, jsii.String("LogStream"), &awskinesis.StreamProps{
		StreamName:      jsii.String(fmt.Sprintf("observability-logs-%s", props.Cfg.Environment)),
		ShardCount:      jsii.Number(shards),
		RetentionPeriod: awscdk.Duration_Hours(jsii.Number(24)),
		Encryption:      awskinesis.StreamEncryption_KMS,
		EncryptionKey:   core.key,
	})
}

func createLogProcessor(stack awscdk.Stack, props *ObservabilityProps) awslambda.Function {
	return createHandlerFunction(stack, "LogProcessor", "logprocessor", props.Cfg, nil)
}

// createLogDeliveryStream drains the Kinesis stream into the archive
// bucket, running every record through the processor first.
func createLogDeliveryStream(stack awscdk.Stack, props *ObservabilityProps, core *CoreResources, stream awskinesis.Stream, processor awslambda.Function) {
	deliveryRole := awsiam.NewRole(stack, jsii.String("LogDeliveryRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("firehose.amazonaws.com"), nil),
	})

	stream.GrantRead(deliveryRole)
	core.archiveBucket.GrantWrite(deliveryRole, nil, nil)
	core.key.GrantEncryptDecrypt(deliveryRole)
	processor.GrantInvoke(deliveryRole)

	awskinesisfirehose.NewCfnDeliveryStream(stack, jsii.String("LogDeliveryStream"), &awskinesisfirehose.CfnDeliveryStreamProps{
		DeliveryStreamName: jsii.String(fmt.Sprintf("observability-log-delivery-%s", props.Cfg.Environment)),
		DeliveryStreamType: jsii.String("KinesisStreamAsSource"),
		KinesisStreamSourceConfiguration: &awskinesisfirehose.CfnDeliveryStream_KinesisStreamSourceConfigurationProperty{
			KinesisStreamArn: stream.StreamArn(),
			RoleArn:          deliveryRole.RoleArn(),
		},
		ExtendedS3DestinationConfiguration: &awskinesisfirehose.CfnDeliveryStream_ExtendedS3DestinationConfigurationProperty{
			BucketArn:         core.archiveBucket.BucketArn(),
			RoleArn:           deliveryRole.RoleArn(),
			Prefix:            jsii.String("logs/year=!{timestamp:yyyy}/month=!{timestamp:MM}/day=!{timestamp:dd}/"),
			ErrorOutputPrefix: jsii.String("errors/!{firehose:error-output-type}/"),
			BufferingHints: &awskinesisfirehose.CfnDeliveryStream_BufferingHintsProperty{
				IntervalInSeconds: jsii.Number(300),
				SizeInMBs:         jsii.Number(5),
			},
			CompressionFormat: jsii.String("GZIP"),
			ProcessingConfiguration: &awskinesisfirehose.CfnDeliveryStream_ProcessingConfigurationProperty{
				Enabled: jsii.Bool(true),
				Processors: []interface{}{
					&awskinesisfirehose.CfnDeliveryStream_ProcessorProperty{
						Type: jsii.String("Lambda"),
						Parameters: []interface{}{
							&awskinesisfirehose.CfnDeliveryStream_ProcessorParameterProperty{
								ParameterName:  jsii.String("LambdaArn"),
								ParameterValue: processor.FunctionArn(),
							},
						},
					},
				},
			},
		},
	})
}

// createLogInsightsRunner schedules the hourly error-count query over the
// platform log groups.
func createLogInsightsRunner(stack awscdk.Stack, props *ObservabilityProps, core *CoreResources) {
	var logGroups []string
	for _, group := range core.logGroups {
		logGroups = append(logGroups, *group.LogGroupName())
	}
	sort.Strings(logGroups)

	runner := createHandlerFunction(stack, "LogInsightsRunner", "loginsights", props.Cfg, map[string]*string{
		"LOG_GROUP_NAMES": jsii.String(strings.Join(logGroups, ",")),
	})

	runner.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect: awsiam.Effect_ALLOW,
		Actions: jsii.Strings(
			"logs:StartQuery",
			"logs:GetQueryResults",
			"cloudwatch:PutMetricData",
		),
		Resources: jsii.Strings("*"),
	}))

	awsevents.NewRule(stack, jsii.String("LogInsightsSchedule"), &awsevents.RuleProps{
		Schedule: awsevents.Schedule_Rate(awscdk.Duration_Minutes(jsii.Number(15))),
		Targets: &[]awsevents.IRuleTarget{
			awseventstargets.NewLambdaFunction(runner, &awseventstargets.LambdaFunctionProps{}),
		},
	})
}

// createLogAnomalyDetector schedules the baseline check over the published
// error counts.
func createLogAnomalyDetector(stack awscdk.Stack, props *ObservabilityProps, core *CoreResources) {
	detector := createHandlerFunction(stack, "LogAnomalyDetector", "loganomaly", props.Cfg, map[string]*string{
		"EVENT_BUS_NAME": core.eventBus.EventBusName(),
	})

	detector.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect:    awsiam.Effect_ALLOW,
		Actions:   jsii.Strings("cloudwatch:GetMetricStatistics"),
		Resources: jsii.Strings("*"),
	}))
	core.eventBus.GrantPutEventsTo(detector)

	awsevents.NewRule(stack, jsii.String("LogAnomalySchedule"), &awsevents.RuleProps{
		Schedule: awsevents.Schedule_Rate(awscdk.Duration_Minutes(jsii.Number(30))),
		Targets: &[]awsevents.IRuleTarget{
			awseventstargets.NewLambdaFunction(detector, &awseventstargets.LambdaFunctionProps{}),
		},
	})
}
