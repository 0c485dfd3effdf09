package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
)

// instance is one discovered EC2 instance.
type instance struct {
	ID   string
	Name string
}

// discoverInstances returns the running instances, sorted by name so the
// dashboard layout is stable between runs.
func (u *Updater) discoverInstances(ctx context.Context) ([]instance, error) {
	var instances []instance

	input := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("instance-state-name"), Values: []string{"running"}},
		},
	}
	for {
		out, err := u.ec2.DescribeInstances(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}
		for _, reservation := range out.Reservations {
			for _, inst := range reservation.Instances {
				if inst.InstanceId == nil {
					continue
				}
				instances = append(instances, instance{
					ID:   *inst.InstanceId,
					Name: instanceName(inst),
				})
			}
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}

	sort.Slice(instances, func(i, j int) bool { return instances[i].Name < instances[j].Name })
	return instances, nil
}

func instanceName(inst ec2types.Instance) string {
	for _, tag := range inst.Tags {
		if tag.Key != nil && *tag.Key == "Name" && tag.Value != nil {
			return *tag.Value
		}
	}
	return aws.ToString(inst.InstanceId)
}

// discoverFunctions returns all function names, sorted.
func (u *Updater) discoverFunctions(ctx context.Context) ([]string, error) {
	var names []string

	input := &awslambda.ListFunctionsInput{}
	for {
		out, err := u.lambda.ListFunctions(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list functions: %w", err)
		}
		for _, fn := range out.Functions {
			if fn.FunctionName != nil {
				names = append(names, *fn.FunctionName)
			}
		}
		if out.NextMarker == nil {
			break
		}
		input.Marker = out.NextMarker
	}

	sort.Strings(names)
	return names, nil
}
