package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "pmcompanion"}

	root.AddCommand(serveCMD(), migrateCMD(), wipeCMD())
	_ = root.Execute()
}
