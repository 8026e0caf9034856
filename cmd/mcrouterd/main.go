package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	mcrouter "github.com/filipenf/mcrouter"
)

var (
	branch    string
	commit    string
	buildtime string
)

var (
	configFile  = flag.String("c", "", "Config file (yaml)")
	destCSV     = flag.String("d", "", "Comma separated list of backend destinations")
	adminAddr   = flag.String("a", "127.0.0.1:9090", "HTTP admin address")
	debugMode   = flag.Bool("debug", false, "Turn on debug mode")
	showVersion = flag.Bool("version", false, "Show version")
)

func version() string {
	return fmt.Sprintf("%s %s %s", branch, commit, buildtime)
}

func initConfig() (*mcrouter.Config, error) {
	if *configFile != "" {
		return mcrouter.LoadConfig(*configFile)
	}
	return mcrouter.DefaultConfig(), nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mcrouterd %s\n", version())
		os.Exit(0)
	}

	if *debugMode {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := initConfig()
	if err != nil {
		logrus.Fatal(err)
	}
	if *destCSV != "" {
		cfg.SetDestinations(*destCSV)
	}
	if err = cfg.Validate(); err != nil {
		logrus.Fatal(err)
	}
	if len(cfg.Destinations) == 0 {
		logrus.Fatal("no destinations configured")
	}

	trans := mcrouter.NewAsciiTransport(cfg.Timeouts)
	proxy, err := mcrouter.NewProxy(cfg, trans)
	if err != nil {
		logrus.Fatal(err)
	}
	defer proxy.Close()

	logrus.WithFields(logrus.Fields{
		"destinations": cfg.Destinations,
		"admin":        *adminAddr,
	}).Info("mcrouterd starting")

	hs := &httpServer{proxy: proxy}
	if err = http.ListenAndServe(*adminAddr, hs); err != nil {
		logrus.Fatal(err)
	}
}
