package main

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsbudgets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awseventstargets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/platform-team/observability/events"
)

// NewCostStack provisions the monthly budget, the scheduled anomaly
// detector and the billing dashboard.
func NewCostStack(scope constructs.Construct, id string, props *ObservabilityProps, core *CoreResources, alerting *AlertingResources) awscdk.Stack {
	stack := initializeStack(scope, id, props)

	createMonthlyBudget(stack, props, alerting)
	createCostAnomalyDetector(stack, props, core)
	dashboard := createBillingDashboard(stack, props)

	createCostOutputs(stack, dashboard)
	return stack
}

func createMonthlyBudget(stack awscdk.Stack, props *ObservabilityProps, alerting *AlertingResources) {
	cfg := props.Cfg

	subscribers := []interface{}{
		&awsbudgets.CfnBudget_SubscriberProperty{
			SubscriptionType: jsii.String("SNS"),
			Address:          alerting.topics[events.SeverityHigh].TopicArn(),
		},
	}
	if cfg.AlertEmail != "" {
		subscribers = append(subscribers, &awsbudgets.CfnBudget_SubscriberProperty{
			SubscriptionType: jsii.String("EMAIL"),
			Address:          jsii.String(cfg.AlertEmail),
		})
	}

	awsbudgets.NewCfnBudget(stack, jsii.String("MonthlyBudget"), &awsbudgets.CfnBudgetProps{
		Budget: &awsbudgets.CfnBudget_BudgetDataProperty{
			BudgetName: jsii.String(fmt.Sprintf("observability-%s-monthly", cfg.Environment)),
			BudgetType: jsii.String("COST"),
			TimeUnit:   jsii.String("MONTHLY"),
			BudgetLimit: &awsbudgets.CfnBudget_SpendProperty{
				Amount: jsii.Number(cfg.Cost.MonthlyBudgetLimit),
				Unit:   jsii.String("USD"),
			},
		},
		NotificationsWithSubscribers: []interface{}{
			&awsbudgets.CfnBudget_NotificationWithSubscribersProperty{
				Notification: &awsbudgets.CfnBudget_NotificationProperty{
					NotificationType:   jsii.String("ACTUAL"),
					ComparisonOperator: jsii.String("GREATER_THAN"),
					Threshold:          jsii.Number(cfg.Cost.BudgetAlertPercentage),
					ThresholdType:      jsii.String("PERCENTAGE"),
				},
				Subscribers: subscribers,
			},
		},
	})
}

// createCostAnomalyDetector schedules the spend baseline check.
func createCostAnomalyDetector(stack awscdk.Stack, props *ObservabilityProps, core *CoreResources) {
	cfg := props.Cfg

	detector := createHandlerFunction(stack, "CostAnomalyDetector", "costanomaly", cfg, map[string]*string{
		"EVENT_BUS_NAME":       core.eventBus.EventBusName(),
		"MONTHLY_BUDGET_LIMIT": jsii.String(fmt.Sprintf("%.2f", cfg.Cost.MonthlyBudgetLimit)),
	})

	detector.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect: awsiam.Effect_ALLOW,
		Actions: jsii.Strings(
			"ce:GetCostAndUsage",
			"cloudwatch:PutMetricData",
		),
		Resources: jsii.Strings("*"),
	}))
	core.eventBus.GrantPutEventsTo(detector)

	awsevents.NewRule(stack, jsii.String("CostAnomalySchedule"), &awsevents.RuleProps{
		Schedule: awsevents.Schedule_Rate(awscdk.Duration_Hours(jsii.Number(float64(cfg.Cost.AnomalyScheduleHours)))),
		Targets: &[]awsevents.IRuleTarget{
			awseventstargets.NewLambdaFunction(detector, &awseventstargets.LambdaFunctionProps{}),
		},
	})
}

func createBillingDashboard(stack awscdk.Stack, props *ObservabilityProps) awscloudwatch.Dashboard {
	environment := props.Cfg.Environment

	dashboard := awscloudwatch.NewDashboard(stack, jsii.String("BillingDashboard"), &awscloudwatch.DashboardProps{
		DashboardName: jsii.String(fmt.Sprintf("Observability-Billing-%s", environment)),
	})

	dashboard.AddWidgets(
		awscloudwatch.NewGraphWidget(&awscloudwatch.GraphWidgetProps{
			Title: jsii.String("Estimated monthly spend"),
			Left: &[]awscloudwatch.IMetric{
				awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
					Namespace:  jsii.String("Observability/Cost"),
					MetricName: jsii.String("EstimatedMonthlySpend"),
					Statistic:  jsii.String("Maximum"),
					Period:     awscdk.Duration_Hours(jsii.Number(6)),
					DimensionsMap: &map[string]*string{
						"Environment": jsii.String(environment),
					},
				}),
			},
			Width: jsii.Number(12),
		}),
		awscloudwatch.NewGraphWidget(&awscloudwatch.GraphWidgetProps{
			Title: jsii.String("AWS estimated charges"),
			Left: &[]awscloudwatch.IMetric{
				// Billing metrics only exist in us-east-1.
				awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
					Namespace:  jsii.String("AWS/Billing"),
					MetricName: jsii.String("EstimatedCharges"),
					Statistic:  jsii.String("Maximum"),
					Period:     awscdk.Duration_Days(jsii.Number(1)),
					Region:     jsii.String("us-east-1"),
					DimensionsMap: &map[string]*string{
						"Currency": jsii.String("USD"),
					},
				}),
			},
			Width: jsii.Number(12),
		}),
	)

	return dashboard
}
