package errors

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a missing or invalid setting
func ConfigurationError(message string, settings ...string) *DriverError {
	err := New(ErrorTypeConfiguration, ComponentDriver, message)
	for _, setting := range settings {
		err.WithSolutions(fmt.Sprintf("Set %s in the config file or its environment variable", setting))
	}
	return err
}

// InventoryError wraps a failed CloudStack API call
func InventoryError(command string, originalErr error) *DriverError {
	err := Wrap(originalErr, ErrorTypeInventory, ComponentCloudStack,
		fmt.Sprintf("CloudStack %s call failed", command))

	if originalErr == nil {
		return err
	}

	errStr := strings.ToLower(originalErr.Error())
	switch {
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "signature"):
		err.WithCause("request signature rejected").WithSolutions(
			"Check cloudstack.api_key and cloudstack.secret_key",
			"Verify the API keys belong to an account allowed to list all resources",
		)
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		err.WithCause("API did not answer in time").WithSolutions(
			"Increase cloudstack.timeout",
			"Check connectivity to cloudstack.api_url",
		)
	}
	return err
}

// TransportError wraps a failure talking to the event bus
func TransportError(component Component, message string, originalErr error) *DriverError {
	return Wrap(originalErr, ErrorTypeTransport, component, message).WithSolutions(
		"Check the broker address and credentials",
		"Verify the queue exists and the user may consume from it",
	)
}

// PublishError wraps a failure handing documents to the loader
func PublishError(component Component, collection string, originalErr error) *DriverError {
	message := "failed to publish document"
	if collection != "" {
		message = fmt.Sprintf("failed to publish %s document", collection)
	}
	return Wrap(originalErr, ErrorTypePublish, component, message)
}
