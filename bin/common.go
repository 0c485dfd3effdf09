package main

import (
	"path/filepath"
	"runtime"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
)

// common.go
func initializeStack(scope constructs.Construct, id string, props *ObservabilityProps) awscdk.Stack {
	var sprops awscdk.StackProps
	if props != nil {
		sprops = props.StackProps
	}

	return awscdk.NewStack(scope, &id, &sprops)
}

// lambdaAssetDir resolves bin/lambda/<name> relative to this source file so
// synth works from any working directory.
func lambdaAssetDir(name string) string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("Could not get file name")
	}
	return filepath.Join(filepath.Dir(filename), "lambda", name)
}
