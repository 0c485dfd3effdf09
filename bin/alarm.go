package main

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/jsii-runtime-go"
)

func alarm(stack awscdk.Stack, name string, metric awscloudwatch.IMetric, threshold float64, evaluationPeriods, datapoints int) awscloudwatch.Alarm {
	alarm := awscloudwatch.NewAlarm(stack, &name, &awscloudwatch.AlarmProps{
		AlarmName:          &name,
		Metric:             metric,
		Threshold:          jsii.Number(threshold),
		EvaluationPeriods:  jsii.Number(float64(evaluationPeriods)),
		DatapointsToAlarm:  jsii.Number(float64(datapoints)),
		ComparisonOperator: awscloudwatch.ComparisonOperator_GREATER_THAN_OR_EQUAL_TO_THRESHOLD,
		TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
	})

	return alarm
}

// createDefaultAlarms covers the baseline signals every environment gets.
// The severity keyword in each alarm name drives the processor's routing.
func createDefaultAlarms(stack awscdk.Stack, props *ObservabilityProps) {
	cfg := props.Cfg
	environment := cfg.Environment

	alarm(stack,
		fmt.Sprintf("observability-%s-medium-ec2-cpu", environment),
		awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
			Namespace:  jsii.String("AWS/EC2"),
			MetricName: jsii.String("CPUUtilization"),
			Statistic:  jsii.String("Average"),
			Period:     awscdk.Duration_Minutes(jsii.Number(5)),
		}),
		cfg.Alerting.CPUThreshold,
		cfg.Alerting.EvaluationPeriods,
		cfg.Alerting.DatapointsToAlarm,
	)

	alarm(stack,
		fmt.Sprintf("observability-%s-high-lambda-errors", environment),
		awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
			Namespace:  jsii.String("AWS/Lambda"),
			MetricName: jsii.String("Errors"),
			Statistic:  jsii.String("Sum"),
			Period:     awscdk.Duration_Minutes(jsii.Number(5)),
		}),
		cfg.Alerting.ErrorRateThreshold,
		cfg.Alerting.EvaluationPeriods,
		cfg.Alerting.DatapointsToAlarm,
	)

	alarm(stack,
		fmt.Sprintf("observability-%s-medium-lambda-slow", environment),
		awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
			Namespace:  jsii.String("AWS/Lambda"),
			MetricName: jsii.String("Duration"),
			Statistic:  jsii.String("p95"),
			Period:     awscdk.Duration_Minutes(jsii.Number(5)),
		}),
		cfg.Alerting.DurationThresholdMs,
		cfg.Alerting.EvaluationPeriods,
		cfg.Alerting.DatapointsToAlarm,
	)

	alarm(stack,
		fmt.Sprintf("observability-%s-high-log-errors", environment),
		awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
			Namespace:  jsii.String("Observability/Logs"),
			MetricName: jsii.String("ErrorCount"),
			Statistic:  jsii.String("Sum"),
			Period:     awscdk.Duration_Hours(jsii.Number(1)),
			DimensionsMap: &map[string]*string{
				"Environment": jsii.String(environment),
			},
		}),
		100,
		cfg.Alerting.EvaluationPeriods,
		cfg.Alerting.DatapointsToAlarm,
	)
}
