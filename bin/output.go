package main

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awskinesis"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssns"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/jsii-runtime-go"

	"github.com/platform-team/observability/events"
)

func createCoreOutputs(stack awscdk.Stack, resources *CoreResources) {
	awscdk.NewCfnOutput(stack, jsii.String("eventBusNameOutput"), &awscdk.CfnOutputProps{
		Value: resources.eventBus.EventBusName(),
	})

	awscdk.NewCfnOutput(stack, jsii.String("archiveBucketOutput"), &awscdk.CfnOutputProps{
		Value: resources.archiveBucket.BucketName(),
	})

	awscdk.NewCfnOutput(stack, jsii.String("platformKeyOutput"), &awscdk.CfnOutputProps{
		Value: resources.key.KeyArn(),
	})
}

func createAlertingOutputs(stack awscdk.Stack, topics map[string]awssns.ITopic, processor awslambda.Function) {
	for _, severity := range events.Severities {
		awscdk.NewCfnOutput(stack, jsii.String(topicID(severity)+"Output"), &awscdk.CfnOutputProps{
			Value: topics[severity].TopicArn(),
		})
	}

	awscdk.NewCfnOutput(stack, jsii.String("alertProcessorOutput"), &awscdk.CfnOutputProps{
		Value: processor.FunctionName(),
	})
}

func createDashboardOutputs(stack awscdk.Stack, dashboard awscloudwatch.Dashboard) {
	awscdk.NewCfnOutput(stack, jsii.String("overviewDashboardOutput"), &awscdk.CfnOutputProps{
		Value: dashboard.DashboardName(),
	})
}

func createAutomationOutputs(stack awscdk.Stack, workflow awsstepfunctions.StateMachine) {
	awscdk.NewCfnOutput(stack, jsii.String("remediationWorkflowOutput"), &awscdk.CfnOutputProps{
		Value: workflow.StateMachineArn(),
	})
}

func createCostOutputs(stack awscdk.Stack, dashboard awscloudwatch.Dashboard) {
	awscdk.NewCfnOutput(stack, jsii.String("billingDashboardOutput"), &awscdk.CfnOutputProps{
		Value: dashboard.DashboardName(),
	})
}

func createLogAnalysisOutputs(stack awscdk.Stack, stream awskinesis.Stream) {
	awscdk.NewCfnOutput(stack, jsii.String("logStreamOutput"), &awscdk.CfnOutputProps{
		Value: stream.StreamName(),
	})
}
