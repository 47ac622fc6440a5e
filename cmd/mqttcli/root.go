// Command mqttcli is a small Cobra/Viper-driven demonstration of the paho
// client, grounded on _examples/hlindberg-mezquit/cmd's flag-binding style
// (persistent flags on the root command, local flags on the pub/sub
// subcommands, package-level option vars).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootCmd is the mqttcli root command; cmd/mqttcli/main.go just calls
// Execute().
var RootCmd = &cobra.Command{
	Use:   "mqttcli",
	Short: "Publish and subscribe to an MQTT 3.1.1 broker",
}

var (
	brokerFlag       string
	clientIDFlag     string
	keepAliveFlag    int
	cleanSessionFlag bool
	qosFlag          int
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := RootCmd.PersistentFlags()
	flags.StringVarP(&brokerFlag, "broker", "b", "tcp://localhost:1883", "broker address (scheme://host:port)")
	flags.StringVarP(&clientIDFlag, "client", "c", "", "MQTT client id (default: random)")
	flags.IntVarP(&keepAliveFlag, "keep-alive", "k", 60, "keep-alive interval in seconds")
	flags.BoolVar(&cleanSessionFlag, "clean-session", true, "set the CONNECT clean-session flag")
	flags.IntVarP(&qosFlag, "qos", "q", 0, "publish/subscribe QoS (0-2)")

	viper.BindPFlag("broker", flags.Lookup("broker"))
	viper.BindPFlag("client", flags.Lookup("client"))
	viper.BindPFlag("keep-alive", flags.Lookup("keep-alive"))
	viper.BindPFlag("clean-session", flags.Lookup("clean-session"))
	viper.BindPFlag("qos", flags.Lookup("qos"))
}

// initConfig loads an optional ~/.mqttcli.yaml, mirroring the teacher's
// config-file-plus-flag-override pattern.
func initConfig() {
	viper.SetConfigName(".mqttcli")
	viper.AddConfigPath("$HOME")
	viper.SetEnvPrefix("MQTTCLI")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.WithError(err).Warn("mqttcli: failed to read config file")
		}
	}
}

func keepAliveDuration() time.Duration {
	return time.Duration(viper.GetInt("keep-alive")) * time.Second
}

// Execute runs the root command, exiting the process with a non-zero status
// on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
