package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nodalio/mqttcore/paho"
	"github.com/nodalio/mqttcore/transport"
)

var (
	pubTopic   string
	pubMessage string
	pubRetain  bool
)

var pubCmd = &cobra.Command{
	Use:   "pub",
	Short: "Publish a single message and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := paho.MqttOptions{
			Broker:       viper.GetString("broker"),
			ClientID:     viper.GetString("client"),
			KeepAlive:    keepAliveDuration(),
			CleanSession: viper.GetBool("clean-session"),
			PubQueueLen:  16,
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		pub, _ := paho.NewClient(ctx, opts, transport.New(), paho.NewLogrusTrace(nil), nil)
		err := pub.Publish(ctx, paho.Message{
			Topic:   pubTopic,
			QoS:     uint8(viper.GetInt("qos")),
			Retain:  pubRetain,
			Payload: []byte(pubMessage),
		})
		if err != nil {
			return fmt.Errorf("mqttcli: publish failed: %w", err)
		}
		pub.Shutdown()
		return nil
	},
}

func init() {
	RootCmd.AddCommand(pubCmd)
	flags := pubCmd.Flags()
	flags.StringVarP(&pubTopic, "topic", "t", "test", "topic to publish to")
	flags.StringVarP(&pubMessage, "message", "m", "", "message payload")
	flags.BoolVarP(&pubRetain, "retain", "r", false, "set the RETAIN flag")
}
