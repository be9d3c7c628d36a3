package main

import (
	"os"

	"github.com/armadaproject/podscheduler/cmd/podscheduler/cmd"
	"github.com/armadaproject/podscheduler/internal/common"
	"github.com/armadaproject/podscheduler/internal/common/logging"
)

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()
	err := cmd.RootCmd().Execute()
	if err != nil {
		logging.Error(err, "podscheduler failed")
		os.Exit(1)
	}
}
