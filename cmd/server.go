package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/k3nlo/Jatalog/engine"
	"github.com/k3nlo/Jatalog/server"
	"github.com/k3nlo/Jatalog/storage"
	"github.com/k3nlo/Jatalog/storage/kvstore"
)

var (
	store   = "memory"
	dataDir = "testdata"
)

func initStoreFlags(fs *pflag.FlagSet) {
	fs.StringVar(&store, "store", store, "store to use: memory, bbolt, badger, or pebble")
	cfgVars["store"] = fs.Lookup("store")

	fs.StringVar(&dataDir, "data", dataDir, "`directory` containing the store")
	cfgVars["data"] = fs.Lookup("data")
}

func newServer() (*server.Server, error) {
	kv, err := kvstore.Open(store, dataDir, log.StandardLogger())
	if err != nil {
		return nil, fmt.Errorf("jatalog: %s", err)
	}
	st, err := storage.NewStore(store, kv)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("jatalog: %s", err)
	}
	e, err := engine.NewEngine(st, flgs)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("jatalog: %s", err)
	}

	return &server.Server{
		Engine: e,
	}, nil
}

func closeServer(svr *server.Server) {
	err := svr.Engine.Store().Close()
	if err != nil {
		log.WithField("error", err.Error()).Error("store close")
	}
}
