package main

import (
	"os"

	"github.com/spf13/cobra"
)

var brokerAddr string

var rootCmd = &cobra.Command{
	Use:          "kafkanet",
	Short:        "A small partitioned log broker",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&brokerAddr, "broker", "localhost:9092", "broker address used by client commands")
	rootCmd.AddCommand(serveCmd, createTopicCmd, produceCmd, consumeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
