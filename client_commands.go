package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/CefBoud/kafkanet/client"
	"github.com/CefBoud/kafkanet/types"
)

const requestTimeout = 10 * time.Second

var (
	topicPartitions int32

	produceKey     string
	produceMessage string

	consumeGroup     string
	consumeFrom      int64
	consumeCommitted bool
	consumeCommit    bool
	consumeMax       int
	consumePoll      time.Duration
	consumeStopIdle  bool
)

var createTopicCmd = &cobra.Command{
	Use:   "create-topic <topic>",
	Short: "Create a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()
		producer, err := client.NewProducerClient(ctx, brokerAddr)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.CreateTopic(ctx, args[0], topicPartitions); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created topic %s\n", args[0])
		return nil
	},
}

var produceCmd = &cobra.Command{
	Use:   "produce <topic>",
	Short: "Publish a message, or one message per stdin line when --message is not set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		producer, err := client.NewProducerClient(cmd.Context(), brokerAddr)
		if err != nil {
			return err
		}
		defer producer.Close()

		send := func(value string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			result, err := producer.Send(ctx, args[0], produceKey, value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s-%d@%d\n", args[0], result.Partition, result.Offset)
			return nil
		}
		if cmd.Flags().Changed("message") {
			return send(produceMessage)
		}
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			if err := send(scanner.Text()); err != nil {
				return err
			}
		}
		return scanner.Err()
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume <topic>",
	Short: "Print the messages of a topic's partition 0",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		consumer, err := client.NewConsumerClient(ctx, brokerAddr, consumeGroup)
		if err != nil {
			return err
		}
		defer consumer.Close()
		consumer.Subscribe(args[0])
		consumer.Seek(0, consumeFrom)
		if consumeCommitted {
			if _, err := consumer.SeekToCommitted(ctx); err != nil {
				return err
			}
		}

		received := 0
		for consumeMax <= 0 || received < consumeMax {
			n, err := consumer.Poll(ctx, consumePoll, func(m types.Message) {
				received++
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", m.Offset, m.Timestamp.Format(time.RFC3339Nano), m.Key, m.Value)
			})
			if ctx.Err() != nil {
				break
			}
			if err != nil {
				return err
			}
			if n == 0 && consumeStopIdle {
				break
			}
		}
		if consumeCommit {
			commitCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			return consumer.Commit(commitCtx)
		}
		return nil
	},
}

func init() {
	createTopicCmd.Flags().Int32VarP(&topicPartitions, "partitions", "p", 1, "number of partitions")

	produceCmd.Flags().StringVarP(&produceKey, "key", "k", "", "message key, routes the message to a partition")
	produceCmd.Flags().StringVarP(&produceMessage, "message", "m", "", "message value")

	consumeCmd.Flags().StringVarP(&consumeGroup, "group", "g", "", "consumer group, used to commit and resume positions")
	consumeCmd.Flags().Int64Var(&consumeFrom, "from", 0, "offset to start from")
	consumeCmd.Flags().BoolVar(&consumeCommitted, "from-committed", false, "start from the group's committed offset when there is one")
	consumeCmd.Flags().BoolVar(&consumeCommit, "commit", false, "commit the final position for the group on exit")
	consumeCmd.Flags().IntVarP(&consumeMax, "max-messages", "n", 0, "stop after this many messages, 0 for no limit")
	consumeCmd.Flags().DurationVar(&consumePoll, "poll-timeout", time.Second, "wait between empty polls")
	consumeCmd.Flags().BoolVar(&consumeStopIdle, "stop-when-idle", false, "exit on the first empty poll")
}
