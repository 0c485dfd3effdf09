package main

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awseventstargets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctionstasks"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/platform-team/observability/events"
)

// NewAutomationStack provisions the remediation workflow and the incident
// responder that triggers it from processed alerts.
func NewAutomationStack(scope constructs.Construct, id string, props *ObservabilityProps, core *CoreResources, alerting *AlertingResources) awscdk.Stack {
	stack := initializeStack(scope, id, props)

	remediation := createRemediationFunction(stack, props)
	workflow := createRemediationWorkflow(stack, props, remediation)
	createIncidentResponder(stack, props, core, alerting, workflow)

	createAutomationOutputs(stack, workflow)
	return stack
}

func createRemediationFunction(stack awscdk.Stack, props *ObservabilityProps) awslambda.Function {
	remediation := createHandlerFunction(stack, "RemediationHandler", "remediation", props.Cfg, nil)

	remediation.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect: awsiam.Effect_ALLOW,
		Actions: jsii.Strings(
			"ec2:DescribeInstances",
			"ec2:RebootInstances",
			"cloudwatch:PutMetricData",
		),
		Resources: jsii.Strings("*"),
	}))

	return remediation
}

// createRemediationWorkflow builds the check, restart, verify chain. Every
// task keeps the workflow input and records its result under its own key,
// the handler reports failures in the payload rather than by throwing.
func createRemediationWorkflow(stack awscdk.Stack, props *ObservabilityProps, remediation awslambda.Function) awsstepfunctions.StateMachine {
	checkHealth := remediationTask(stack, "CheckHealth", remediation, "check_health", "$.check")
	restart := remediationTask(stack, "RestartInstance", remediation, "restart", "$.restart")
	verify := remediationTask(stack, "VerifyRecovery", remediation, "verify", "$.verify")

	healthy := awsstepfunctions.NewSucceed(stack, jsii.String("AlreadyHealthy"), &awsstepfunctions.SucceedProps{})
	recovered := awsstepfunctions.NewSucceed(stack, jsii.String("Recovered"), &awsstepfunctions.SucceedProps{})
	unrecovered := awsstepfunctions.NewFail(stack, jsii.String("NotRecovered"), &awsstepfunctions.FailProps{
		Cause: jsii.String("Instance still unhealthy after restart"),
	})

	wait := awsstepfunctions.NewWait(stack, jsii.String("WaitForRestart"), &awsstepfunctions.WaitProps{
		Time: awsstepfunctions.WaitTime_Duration(awscdk.Duration_Minutes(jsii.Number(2))),
	})

	verifyChoice := awsstepfunctions.NewChoice(stack, jsii.String("IsRecovered"), &awsstepfunctions.ChoiceProps{}).
		When(awsstepfunctions.Condition_StringEquals(jsii.String("$.verify.status"), jsii.String("healthy")), recovered, nil).
		Otherwise(unrecovered)

	definition := checkHealth.Next(
		awsstepfunctions.NewChoice(stack, jsii.String("IsHealthy"), &awsstepfunctions.ChoiceProps{}).
			When(awsstepfunctions.Condition_StringEquals(jsii.String("$.check.status"), jsii.String("healthy")), healthy, nil).
			Otherwise(restart.Next(wait.Next(verify.Next(verifyChoice)))))

	return awsstepfunctions.NewStateMachine(stack, jsii.String("RemediationWorkflow"), &awsstepfunctions.StateMachineProps{
		StateMachineName: jsii.String(fmt.Sprintf("observability-remediation-%s", props.Cfg.Environment)),
		DefinitionBody:   awsstepfunctions.DefinitionBody_FromChainable(definition),
		Timeout:          awscdk.Duration_Minutes(jsii.Number(15)),
	})
}

func remediationTask(stack awscdk.Stack, id string, remediation awslambda.Function, action, resultPath string) awsstepfunctionstasks.LambdaInvoke {
	return awsstepfunctionstasks.NewLambdaInvoke(stack, jsii.String(id), &awsstepfunctionstasks.LambdaInvokeProps{
		LambdaFunction: remediation,
		Payload: awsstepfunctions.TaskInput_FromObject(&map[string]interface{}{
			"action":      action,
			"instance_id": awsstepfunctions.JsonPath_StringAt(jsii.String("$.resource_id")),
		}),
		ResultSelector: &map[string]interface{}{
			"status.$": "$.Payload.status",
		},
		ResultPath: jsii.String(resultPath),
	})
}

// createIncidentResponder wires processed critical and high alerts into
// the workflow and the critical topic.
func createIncidentResponder(stack awscdk.Stack, props *ObservabilityProps, core *CoreResources, alerting *AlertingResources, workflow awsstepfunctions.StateMachine) {
	criticalTopic := alerting.topics[events.SeverityCritical]

	responder := createHandlerFunction(stack, "IncidentResponder", "incident", props.Cfg, map[string]*string{
		"REMEDIATION_WORKFLOW_ARN": workflow.StateMachineArn(),
		"INCIDENT_TOPIC_ARN":       criticalTopic.TopicArn(),
	})

	workflow.GrantStartExecution(responder)
	criticalTopic.GrantPublish(responder)
	// The topic is encrypted with the platform key.
	core.key.GrantEncryptDecrypt(responder)

	awsevents.NewRule(stack, jsii.String("IncidentRule"), &awsevents.RuleProps{
		EventBus: core.eventBus,
		EventPattern: &awsevents.EventPattern{
			Source:     jsii.Strings(events.SourceAlerts),
			DetailType: jsii.Strings(events.DetailTypeAlertProcessed),
			Detail: &map[string]interface{}{
				"severity": []string{events.SeverityCritical, events.SeverityHigh},
			},
		},
		Targets: &[]awsevents.IRuleTarget{
			awseventstargets.NewLambdaFunction(responder, &awseventstargets.LambdaFunctionProps{}),
		},
	})
}
