package main

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awseventstargets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// NewDashboardStack provisions the curated system dashboard and the
// updater that keeps the auto-generated resource dashboards current.
func NewDashboardStack(scope constructs.Construct, id string, props *ObservabilityProps) awscdk.Stack {
	stack := initializeStack(scope, id, props)

	dashboard := createOverviewDashboard(stack, props)
	createDashboardUpdater(stack, props)

	createDashboardOutputs(stack, dashboard)
	return stack
}

func createOverviewDashboard(stack awscdk.Stack, props *ObservabilityProps) awscloudwatch.Dashboard {
	environment := props.Cfg.Environment

	dashboard := awscloudwatch.NewDashboard(stack, jsii.String("OverviewDashboard"), &awscloudwatch.DashboardProps{
		DashboardName: jsii.String(fmt.Sprintf("Observability-Overview-%s", environment)),
	})

	dashboard.AddWidgets(
		awscloudwatch.NewSingleValueWidget(&awscloudwatch.SingleValueWidgetProps{
			Title: jsii.String("Lambda errors (1h)"),
			Metrics: &[]awscloudwatch.IMetric{
				awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
					Namespace:  jsii.String("AWS/Lambda"),
					MetricName: jsii.String("Errors"),
					Statistic:  jsii.String("Sum"),
					Period:     awscdk.Duration_Hours(jsii.Number(1)),
				}),
			},
			Width: jsii.Number(12),
		}),
		awscloudwatch.NewSingleValueWidget(&awscloudwatch.SingleValueWidgetProps{
			Title: jsii.String("Log errors (1h)"),
			Metrics: &[]awscloudwatch.IMetric{
				awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
					Namespace:  jsii.String("Observability/Logs"),
					MetricName: jsii.String("ErrorCount"),
					Statistic:  jsii.String("Sum"),
					Period:     awscdk.Duration_Hours(jsii.Number(1)),
					DimensionsMap: &map[string]*string{
						"Environment": jsii.String(environment),
					},
				}),
			},
			Width: jsii.Number(12),
		}),
	)

	dashboard.AddWidgets(
		awscloudwatch.NewGraphWidget(&awscloudwatch.GraphWidgetProps{
			Title: jsii.String("EC2 CPU"),
			Left: &[]awscloudwatch.IMetric{
				awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
					Namespace:  jsii.String("AWS/EC2"),
					MetricName: jsii.String("CPUUtilization"),
					Statistic:  jsii.String("Average"),
					Period:     awscdk.Duration_Minutes(jsii.Number(5)),
				}),
			},
			Width: jsii.Number(12),
		}),
		awscloudwatch.NewGraphWidget(&awscloudwatch.GraphWidgetProps{
			Title: jsii.String("Lambda"),
			Left: &[]awscloudwatch.IMetric{
				awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
					Namespace:  jsii.String("AWS/Lambda"),
					MetricName: jsii.String("Invocations"),
					Statistic:  jsii.String("Sum"),
					Period:     awscdk.Duration_Minutes(jsii.Number(5)),
				}),
				awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
					Namespace:  jsii.String("AWS/Lambda"),
					MetricName: jsii.String("Errors"),
					Statistic:  jsii.String("Sum"),
					Period:     awscdk.Duration_Minutes(jsii.Number(5)),
				}),
			},
			Width: jsii.Number(12),
		}),
	)

	dashboard.AddWidgets(
		awscloudwatch.NewGraphWidget(&awscloudwatch.GraphWidgetProps{
			Title: jsii.String("Log errors"),
			Left: &[]awscloudwatch.IMetric{
				awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
					Namespace:  jsii.String("Observability/Logs"),
					MetricName: jsii.String("ErrorCount"),
					Statistic:  jsii.String("Sum"),
					Period:     awscdk.Duration_Hours(jsii.Number(1)),
					DimensionsMap: &map[string]*string{
						"Environment": jsii.String(environment),
					},
				}),
			},
			Width: jsii.Number(12),
		}),
		awscloudwatch.NewGraphWidget(&awscloudwatch.GraphWidgetProps{
			Title: jsii.String("Automated restarts"),
			Left: &[]awscloudwatch.IMetric{
				awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
					Namespace:  jsii.String("Observability/Automation"),
					MetricName: jsii.String("InstanceRestart"),
					Statistic:  jsii.String("Sum"),
					Period:     awscdk.Duration_Hours(jsii.Number(1)),
				}),
			},
			Width: jsii.Number(12),
		}),
	)

	return dashboard
}

// createDashboardUpdater schedules the discovery Lambda that rewrites the
// auto-generated EC2 and Lambda dashboards.
func createDashboardUpdater(stack awscdk.Stack, props *ObservabilityProps) {
	updater := createHandlerFunction(stack, "DashboardUpdater", "dashboardupdater", props.Cfg, nil)

	updater.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect: awsiam.Effect_ALLOW,
		Actions: jsii.Strings(
			"ec2:DescribeInstances",
			"lambda:ListFunctions",
			"cloudwatch:PutDashboard",
		),
		Resources: jsii.Strings("*"),
	}))

	awsevents.NewRule(stack, jsii.String("DashboardUpdateSchedule"), &awsevents.RuleProps{
		Schedule: awsevents.Schedule_Rate(awscdk.Duration_Hours(jsii.Number(1))),
		Targets: &[]awsevents.IRuleTarget{
			awseventstargets.NewLambdaFunction(updater, &awseventstargets.LambdaFunctionProps{}),
		},
	})
}
