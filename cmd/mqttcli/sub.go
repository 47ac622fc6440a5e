package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nodalio/mqttcore/paho"
	"github.com/nodalio/mqttcore/transport"
)

var subTopic string

var subCmd = &cobra.Command{
	Use:   "sub",
	Short: "Subscribe to a topic and print messages until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := paho.MqttOptions{
			Broker:       viper.GetString("broker"),
			ClientID:     viper.GetString("client"),
			KeepAlive:    keepAliveDuration(),
			CleanSession: viper.GetBool("clean-session"),
			PubQueueLen:  16,
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		onMessage := func(msg paho.Message) {
			fmt.Printf("%s: %s\n", msg.Topic, msg.Payload)
		}
		_, sub := paho.NewClient(ctx, opts, transport.New(), paho.NewLogrusTrace(nil), onMessage)

		qos := uint8(viper.GetInt("qos"))
		if err := sub.Subscribe(ctx, []paho.Subscription{{Filter: subTopic, QoS: qos}}); err != nil {
			return fmt.Errorf("mqttcli: subscribe failed: %w", err)
		}

		<-ctx.Done()
		return nil
	},
}

func init() {
	RootCmd.AddCommand(subCmd)
	subCmd.Flags().StringVarP(&subTopic, "topic", "t", "test", "topic filter to subscribe to")
}
