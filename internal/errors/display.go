package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// DisplayError writes an error to w, rendering DriverError guidance when present
func DisplayError(w io.Writer, err error, noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var driverErr *DriverError
	if !stderrors.As(err, &driverErr) {
		fmt.Fprintf(w, "%s %v\n", color.RedString("Error:"), err)
		return
	}

	colorFunc := getErrorStyle(driverErr.Type)
	fmt.Fprintf(w, "\n%s\n", colorFunc(driverErr.Message))

	if driverErr.Cause != "" {
		fmt.Fprintf(w, "   %s %s\n", color.YellowString("Cause:"), color.HiBlackString(driverErr.Cause))
	}

	if driverErr.Err != nil {
		fmt.Fprintf(w, "   %s %s\n", color.CyanString("Detail:"), color.HiBlackString(driverErr.Err.Error()))
	}

	if len(driverErr.Solutions) > 0 {
		fmt.Fprintf(w, "\n   %s\n", color.GreenString("Solutions:"))
		for i, solution := range driverErr.Solutions {
			fmt.Fprintf(w, "   %s %s\n", color.HiBlackString(fmt.Sprintf("%d.", i+1)), solution)
		}
	}

	fmt.Fprintln(w)
}

// getErrorStyle returns the appropriate color function for an error type
func getErrorStyle(errType ErrorType) func(format string, a ...interface{}) string {
	switch errType {
	case ErrorTypeConfiguration, ErrorTypeValidation:
		return color.YellowString
	case ErrorTypeInventory:
		return color.CyanString
	case ErrorTypeTransport, ErrorTypePublish:
		return color.RedString
	default:
		return color.RedString
	}
}
