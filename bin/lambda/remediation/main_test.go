package main

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEC2 struct {
	describeFunc func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	rebooted     []string
	rebootErr    error
}

func (m *mockEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if m.describeFunc != nil {
		return m.describeFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeInstancesOutput{}, nil
}

func (m *mockEC2) RebootInstances(ctx context.Context, params *ec2.RebootInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RebootInstancesOutput, error) {
	m.rebooted = append(m.rebooted, params.InstanceIds...)
	return &ec2.RebootInstancesOutput{}, m.rebootErr
}

type mockCloudWatch struct {
	metrics []*cloudwatch.PutMetricDataInput
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.metrics = append(m.metrics, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func describeWithState(state ec2types.InstanceStateName) func(context.Context, *ec2.DescribeInstancesInput, ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return func(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
		return &ec2.DescribeInstancesOutput{
			Reservations: []ec2types.Reservation{
				{Instances: []ec2types.Instance{
					{InstanceId: &params.InstanceIds[0], State: &ec2types.InstanceState{Name: state}},
				}},
			},
		}, nil
	}
}

func newTestRemediator(ec2Client *mockEC2, cwClient *mockCloudWatch) *Remediator {
	return &Remediator{ec2: ec2Client, cloudwatch: cwClient, log: zerolog.New(io.Discard)}
}

func TestRestartRunningInstance(t *testing.T) {
	ec2Client := &mockEC2{describeFunc: describeWithState(ec2types.InstanceStateNameRunning)}
	cwClient := &mockCloudWatch{}
	r := newTestRemediator(ec2Client, cwClient)

	resp, err := r.Handle(context.Background(), Request{Action: ActionRestart, ResourceID: "i-0abc"})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, []string{"i-0abc"}, ec2Client.rebooted)
	require.Len(t, cwClient.metrics, 1)
	assert.Equal(t, "Observability/Automation", *cwClient.metrics[0].Namespace)
}

func TestRestartSkipsStoppedInstance(t *testing.T) {
	ec2Client := &mockEC2{describeFunc: describeWithState(ec2types.InstanceStateNameStopped)}
	r := newTestRemediator(ec2Client, &mockCloudWatch{})

	resp, err := r.Handle(context.Background(), Request{Action: ActionRestart, InstanceID: "i-0abc"})
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, resp.Status)
	assert.Equal(t, "instance_not_running", resp.Reason)
	assert.Empty(t, ec2Client.rebooted)
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		state ec2types.InstanceStateName
		want  string
	}{
		{ec2types.InstanceStateNameRunning, StatusHealthy},
		{ec2types.InstanceStateNameStopped, StatusUnhealthy},
		{ec2types.InstanceStateNamePending, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			ec2Client := &mockEC2{describeFunc: describeWithState(tt.state)}
			r := newTestRemediator(ec2Client, &mockCloudWatch{})

			resp, err := r.Handle(context.Background(), Request{Action: ActionCheckHealth, ResourceID: "i-0abc"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, string(tt.state), resp.InstanceState)
		})
	}
}

func TestVerifyUsesHealthCheck(t *testing.T) {
	ec2Client := &mockEC2{describeFunc: describeWithState(ec2types.InstanceStateNameRunning)}
	r := newTestRemediator(ec2Client, &mockCloudWatch{})

	resp, err := r.Handle(context.Background(), Request{Action: ActionVerify, ResourceID: "i-0abc"})
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, resp.Status)
}

func TestUnknownActionReturnsErrorStatus(t *testing.T) {
	r := newTestRemediator(&mockEC2{}, &mockCloudWatch{})

	resp, err := r.Handle(context.Background(), Request{Action: "terminate", ResourceID: "i-0abc"})
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "unknown action")
}

func TestMissingInstanceID(t *testing.T) {
	r := newTestRemediator(&mockEC2{}, &mockCloudWatch{})

	resp, err := r.Handle(context.Background(), Request{Action: ActionRestart})
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
}

func TestDescribeErrorReported(t *testing.T) {
	ec2Client := &mockEC2{
		describeFunc: func(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			return nil, fmt.Errorf("api unavailable")
		},
	}
	r := newTestRemediator(ec2Client, &mockCloudWatch{})

	resp, err := r.Handle(context.Background(), Request{Action: ActionCheckHealth, ResourceID: "i-0abc"})
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "api unavailable")
}
