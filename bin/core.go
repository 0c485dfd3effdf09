package main

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awskms"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsxray"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/platform-team/observability/config"
)

// NewCoreStack provisions the shared foundation: the encryption key, the
// long-term archive bucket, the platform log groups and the event bus the
// other stacks publish to.
func NewCoreStack(scope constructs.Construct, id string, props *ObservabilityProps) *CoreResources {
	stack := initializeStack(scope, id, props)
	environment := props.Cfg.Environment

	key := createPlatformKey(stack, environment)
	bucket := createArchiveBucket(stack, key)
	eventBus := createEventBus(stack, environment)
	createTraceSampling(stack, environment)

	resources := &CoreResources{
		stack:         stack,
		key:           key,
		archiveBucket: bucket,
		eventBus:      eventBus,
		logGroups:     createPlatformLogGroups(stack, props, key),
	}

	createCoreOutputs(stack, resources)
	return resources
}

func createPlatformKey(stack awscdk.Stack, environment string) awskms.Key {
	// Keep prod and staging keys around even if the stack goes away.
	removal := awscdk.RemovalPolicy_RETAIN
	if environment == config.EnvDev {
		removal = awscdk.RemovalPolicy_DESTROY
	}

	key := awskms.NewKey(stack, jsii.String("PlatformKey"), &awskms.KeyProps{
		Description:       jsii.String("Observability platform encryption key"),
		EnableKeyRotation: jsii.Bool(true),
		RemovalPolicy:     removal,
	})
	key.AddAlias(jsii.String(fmt.Sprintf("alias/observability-%s", environment)))

	// CloudWatch Logs must be able to use the key for the encrypted groups.
	key.AddToResourcePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect: awsiam.Effect_ALLOW,
		Principals: &[]awsiam.IPrincipal{
			awsiam.NewServicePrincipal(jsii.String(fmt.Sprintf("logs.%s.amazonaws.com", *stack.Region())), nil),
		},
		Actions: jsii.Strings(
			"kms:Encrypt",
			"kms:Decrypt",
			"kms:GenerateDataKey*",
			"kms:DescribeKey",
		),
		Resources: jsii.Strings("*"),
	}), jsii.Bool(true))

	return key
}

func createArchiveBucket(stack awscdk.Stack, key awskms.Key) awss3.Bucket {
	return awss3.NewBucket(stack, jsii.String("LogArchiveBucket"), &awss3.BucketProps{
		Encryption:        awss3.BucketEncryption_KMS,
		EncryptionKey:     key,
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
		EnforceSSL:        jsii.Bool(true),
		Versioned:         jsii.Bool(true),
		LifecycleRules: &[]*awss3.LifecycleRule{
			{
				Transitions: &[]*awss3.Transition{
					{
						StorageClass:    awss3.StorageClass_INFREQUENT_ACCESS(),
						TransitionAfter: awscdk.Duration_Days(jsii.Number(30)),
					},
					{
						StorageClass:    awss3.StorageClass_GLACIER(),
						TransitionAfter: awscdk.Duration_Days(jsii.Number(90)),
					},
				},
				Expiration: awscdk.Duration_Days(jsii.Number(365)),
			},
		},
	})
}

func createEventBus(stack awscdk.Stack, environment string) awsevents.EventBus {
	eventBus := awsevents.NewEventBus(stack, jsii.String("PlatformBus"), &awsevents.EventBusProps{
		EventBusName: jsii.String(fmt.Sprintf("observability-%s", environment)),
	})

	// Replayable history of everything crossing the bus.
	eventBus.Archive(jsii.String("PlatformBusArchive"), &awsevents.BaseArchiveProps{
		ArchiveName: jsii.String(fmt.Sprintf("observability-%s-archive", environment)),
		EventPattern: &awsevents.EventPattern{
			Account: jsii.Strings(*stack.Account()),
		},
		Retention: awscdk.Duration_Days(jsii.Number(30)),
	})

	return eventBus
}

// createTraceSampling keeps X-Ray costs sane while the traced handlers run.
func createTraceSampling(stack awscdk.Stack, environment string) {
	awsxray.NewCfnSamplingRule(stack, jsii.String("PlatformSamplingRule"), &awsxray.CfnSamplingRuleProps{
		SamplingRule: &awsxray.CfnSamplingRule_SamplingRuleProperty{
			RuleName:      jsii.String(fmt.Sprintf("observability-%s", environment)),
			Priority:      jsii.Number(100),
			FixedRate:     jsii.Number(0.05),
			ReservoirSize: jsii.Number(1),
			ServiceName:   jsii.String("*"),
			ServiceType:   jsii.String("*"),
			Host:          jsii.String("*"),
			HttpMethod:    jsii.String("*"),
			UrlPath:       jsii.String("*"),
			ResourceArn:   jsii.String("*"),
			Version:       jsii.Number(1),
		},
	})
}

// createPlatformLogGroups builds one encrypted group per platform
// component.
func createPlatformLogGroups(stack awscdk.Stack, props *ObservabilityProps, key awskms.Key) map[string]awslogs.LogGroup {
	names := []string{"platform", "alert-processor", "automation", "cost-monitor", "metric-collector"}

	groups := make(map[string]awslogs.LogGroup, len(names))
	for i, name := range names {
		groups[name] = awslogs.NewLogGroup(stack, jsii.String(fmt.Sprintf("PlatformLogGroup%d", i)), &awslogs.LogGroupProps{
			LogGroupName:  jsii.String(fmt.Sprintf("/observability/%s/%s", props.Cfg.Environment, name)),
			Retention:     retention(props.Cfg.Logging.RetentionDays),
			EncryptionKey: key,
			RemovalPolicy: awscdk.RemovalPolicy_DESTROY,
		})
	}
	return groups
}

// retention maps the configured day count onto the CloudWatch enum.
func retention(days int) awslogs.RetentionDays {
	switch {
	case days <= 30:
		return awslogs.RetentionDays_ONE_MONTH
	case days <= 90:
		return awslogs.RetentionDays_THREE_MONTHS
	default:
		return awslogs.RetentionDays_ONE_YEAR
	}
}
