package main

import "encoding/json"

// widget is the CloudWatch dashboard widget JSON shape.
type widget struct {
	Type       string           `json:"type"`
	X          int              `json:"x"`
	Y          int              `json:"y"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Properties widgetProperties `json:"properties"`
}

type widgetProperties struct {
	Title   string  `json:"title"`
	View    string  `json:"view"`
	Region  string  `json:"region"`
	Metrics [][]any `json:"metrics"`
	Period  int     `json:"period"`
	Stat    string  `json:"stat"`
}

// ec2DashboardBody renders one CPU widget per instance, two per row,
// capped at maxResourcesPerDashboard.
func ec2DashboardBody(instances []instance, region string) string {
	if len(instances) > maxResourcesPerDashboard {
		instances = instances[:maxResourcesPerDashboard]
	}

	var widgets []widget
	for i, inst := range instances {
		widgets = append(widgets, widget{
			Type:   "metric",
			X:      (i % 2) * 12,
			Y:      (i / 2) * 6,
			Width:  12,
			Height: 6,
			Properties: widgetProperties{
				Title:  inst.Name + " CPU",
				View:   "timeSeries",
				Region: region,
				Metrics: [][]any{
					{"AWS/EC2", "CPUUtilization", "InstanceId", inst.ID},
				},
				Period: 300,
				Stat:   "Average",
			},
		})
	}
	return marshalBody(widgets)
}

// lambdaDashboardBody renders an errors-and-invocations widget per
// function, two per row, capped at maxResourcesPerDashboard.
func lambdaDashboardBody(functions []string, region string) string {
	if len(functions) > maxResourcesPerDashboard {
		functions = functions[:maxResourcesPerDashboard]
	}

	var widgets []widget
	for i, name := range functions {
		widgets = append(widgets, widget{
			Type:   "metric",
			X:      (i % 2) * 12,
			Y:      (i / 2) * 6,
			Width:  12,
			Height: 6,
			Properties: widgetProperties{
				Title:  name,
				View:   "timeSeries",
				Region: region,
				Metrics: [][]any{
					{"AWS/Lambda", "Invocations", "FunctionName", name},
					{"AWS/Lambda", "Errors", "FunctionName", name},
				},
				Period: 300,
				Stat:   "Sum",
			},
		})
	}
	return marshalBody(widgets)
}

func marshalBody(widgets []widget) string {
	if widgets == nil {
		widgets = []widget{}
	}
	body, _ := json.Marshal(map[string]any{"widgets": widgets})
	return string(body)
}
