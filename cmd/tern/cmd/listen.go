package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternledger/tern-go/internal/model"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Stream ledger events to stdout",
	RunE:  runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().String("filter", "pipeline", "event filter (pipeline, data)")
}

func runListen(cmd *cobra.Command, args []string) error {
	var filter model.EventFilter
	switch name, _ := cmd.Flags().GetString("filter"); name {
	case "pipeline":
		filter = model.PipelineFilter{}
	case "data":
		filter = model.DataFilter{}
	default:
		return fmt.Errorf("unknown filter %q (expected pipeline or data)", name)
	}

	c, cleanup, err := newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := c.Subscribe(ctx, filter, func(ev model.Event, err error) {
		if err != nil {
			log.Printf("event stream: %v", err)
			return
		}
		printEvent(ev)
	})
	if err != nil {
		return err
	}
	defer sub.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		return nil
	case <-sub.Done():
		return nil
	}
}

func printEvent(ev model.Event) {
	switch x := ev.(type) {
	case model.PipelineEvent:
		hash := "-"
		if x.Hash != nil {
			hash = x.Hash.Hex()
		}
		switch st := x.Status.(type) {
		case model.StatusValidating:
			fmt.Printf("pipeline %s validating\n", hash)
		case model.StatusCommitted:
			fmt.Printf("pipeline %s committed\n", hash)
		case model.StatusRejected:
			fmt.Printf("pipeline %s rejected: %s\n", hash, st.Reason)
		}
	case model.DataEvent:
		fmt.Printf("data %v %s\n", x.Entity, dataKindName(x.Kind))
	}
}

func dataKindName(k model.DataEventKind) string {
	switch k {
	case model.DataCreated:
		return "created"
	case model.DataUpdated:
		return "updated"
	case model.DataDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
