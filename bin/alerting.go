package main

import (
	"fmt"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awseventstargets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssns"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssnssubscriptions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsssm"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/platform-team/observability/events"
)

// NewAlertingStack provisions the severity topics, the alert processor and
// the rules that feed it.
func NewAlertingStack(scope constructs.Construct, id string, props *ObservabilityProps, core *CoreResources) *AlertingResources {
	stack := initializeStack(scope, id, props)

	topics := createSeverityTopics(stack, props, core)
	processor := createAlertProcessor(stack, props, core, topics)
	createAlertRules(stack, core, processor)
	createDefaultAlarms(stack, props)

	createAlertingOutputs(stack, topics, processor)

	return &AlertingResources{
		stack:          stack,
		topics:         topics,
		alertProcessor: processor,
	}
}

// Alerting resources
func createSeverityTopics(stack awscdk.Stack, props *ObservabilityProps, core *CoreResources) map[string]awssns.ITopic {
	environment := props.Cfg.Environment
	topics := make(map[string]awssns.ITopic, len(events.Severities))

	for _, severity := range events.Severities {
		topic := awssns.NewTopic(stack, jsii.String(topicID(severity)), &awssns.TopicProps{
			TopicName:   jsii.String(fmt.Sprintf("observability-%s-%s", severity, environment)),
			DisplayName: jsii.String(fmt.Sprintf("Observability %s alerts (%s)", severity, environment)),
			MasterKey:   core.key,
		})

		if props.Cfg.AlertEmail != "" {
			topic.AddSubscription(awssnssubscriptions.NewEmailSubscription(
				jsii.String(props.Cfg.AlertEmail), &awssnssubscriptions.EmailSubscriptionProps{}))
		}

		// Published so handlers and out-of-stack consumers can look the
		// topics up without hard-wired ARNs.
		awsssm.NewStringParameter(stack, jsii.String(topicID(severity)+"Param"), &awsssm.StringParameterProps{
			ParameterName: jsii.String(fmt.Sprintf("/observability/%s/alerts/topics/%s", environment, severity)),
			StringValue:   topic.TopicArn(),
		})

		topics[severity] = topic
	}

	// Services that deliver to the encrypted topics need use of the key.
	for _, service := range []string{"cloudwatch.amazonaws.com", "budgets.amazonaws.com"} {
		core.key.GrantEncryptDecrypt(awsiam.NewServicePrincipal(jsii.String(service), nil))
	}

	return topics
}

func topicID(severity string) string {
	return strings.ToUpper(severity[:1]) + severity[1:] + "AlertTopic"
}

func createAlertProcessor(stack awscdk.Stack, props *ObservabilityProps, core *CoreResources, topics map[string]awssns.ITopic) awslambda.Function {
	env := map[string]*string{
		"EVENT_BUS_NAME":   core.eventBus.EventBusName(),
		"RUNBOOK_BASE_URL": jsii.String(props.Cfg.RunbookBaseURL),
	}
	for severity, topic := range topics {
		env["TOPIC_ARN_"+strings.ToUpper(severity)] = topic.TopicArn()
	}

	processor := createHandlerFunction(stack, "AlertProcessor", "alertprocessor", props.Cfg, env)

	for _, topic := range topics {
		topic.GrantPublish(processor)
	}
	core.key.GrantEncryptDecrypt(processor)
	core.eventBus.GrantPutEventsTo(processor)

	return processor
}

// createAlertRules wires CloudWatch alarm state changes and custom alerts
// into the processor.
func createAlertRules(stack awscdk.Stack, core *CoreResources, processor awslambda.Function) {
	target := awseventstargets.NewLambdaFunction(processor, &awseventstargets.LambdaFunctionProps{})

	// Alarm state changes arrive on the default bus.
	awsevents.NewRule(stack, jsii.String("AlarmStateChangeRule"), &awsevents.RuleProps{
		EventPattern: &awsevents.EventPattern{
			Source:     jsii.Strings("aws.cloudwatch"),
			DetailType: jsii.Strings(events.DetailTypeAlarmStateChange),
		},
		Targets: &[]awsevents.IRuleTarget{target},
	})

	// Custom alerts arrive on the platform bus.
	awsevents.NewRule(stack, jsii.String("CustomAlertRule"), &awsevents.RuleProps{
		EventBus: core.eventBus,
		EventPattern: &awsevents.EventPattern{
			Source:     jsii.Strings(events.SourceCustom),
			DetailType: jsii.Strings(events.DetailTypeCustomAlert),
		},
		Targets: &[]awsevents.IRuleTarget{target},
	})
}
