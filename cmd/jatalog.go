package cmd

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/k3nlo/Jatalog/flags"
)

var (
	jatalogCmd = &cobra.Command{
		Use:               "jatalog",
		Short:             "A Datalog engine",
		Long:              "Jatalog evaluates Datalog facts, rules, and queries.",
		PersistentPreRunE: jatalogPreRun,
		PersistentPostRun: jatalogPostRun,
		SilenceUsage:      true,
	}

	logFile   = "jatalog.log"
	logLevel  = "info"
	logStderr = false
	logWriter io.WriteCloser

	configFile = "jatalog.hcl"
	noConfig   = false
	flagArgs   = []string{}

	cfgVars   = map[string]*pflag.Flag{}
	cfg       = map[string]interface{}{}
	flgs      = flags.Default()
	usedFlags = map[string]struct{}{}
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableLevelTruncation: true,
	})

	fs := jatalogCmd.PersistentFlags()

	fs.StringVar(&logFile, "log-file", logFile, "`file` to use for logging")
	cfgVars["log-file"] = fs.Lookup("log-file")

	fs.StringVar(&logLevel, "log-level", logLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	cfgVars["log-level"] = fs.Lookup("log-level")

	fs.BoolVarP(&logStderr, "log-stderr", "s", logStderr, "log to standard error")

	fs.StringVar(&configFile, "config-file", configFile, "`file` to load config from")
	fs.BoolVar(&noConfig, "no-config", noConfig, "don't load config file")
	fs.StringSliceVar(&flagArgs, "flag", flagArgs,
		"engine flag to set as `name=bool`; multiple allowed")
}

func Execute() error {
	return jatalogCmd.Execute()
}

func jatalogPreRun(cmd *cobra.Command, args []string) error {
	cmd.Flags().Visit(
		func(flg *pflag.Flag) {
			usedFlags[flg.Name] = struct{}{}
		})

	if configFile != "" && !noConfig {
		err := loadConfig(configFile, usedFlags)
		if err != nil && !(os.IsNotExist(err) && !cmd.Flags().Changed("config-file")) {
			return fmt.Errorf("jatalog: %s", err)
		}
	}

	err := setFlags(flagArgs)
	if err != nil {
		return fmt.Errorf("jatalog: %s", err)
	}

	if !logStderr && logFile != "" {
		var err error
		logWriter, err = os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			logWriter = nil
			return fmt.Errorf("jatalog: %s", err)
		}
		log.SetOutput(logWriter)
	}

	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("jatalog: %s", err)
	}
	log.SetLevel(ll)

	log.WithField("pid", os.Getpid()).Info("jatalog starting")
	return nil
}

func jatalogPostRun(cmd *cobra.Command, args []string) {
	log.WithField("pid", os.Getpid()).Info("jatalog done")

	if logWriter != nil {
		logWriter.Close()
	}
}

// loadConfig sets each config variable and engine flag named in the file, unless the
// corresponding command line flag was used.
func loadConfig(fn string, used map[string]struct{}) error {
	b, err := ioutil.ReadFile(fn)
	if err != nil {
		return err
	}

	err = hcl.Decode(&cfg, string(b))
	if err != nil {
		return err
	}

	for name, val := range cfg {
		if flg, ok := cfgVars[name]; ok {
			if flg == nil {
				continue
			}
			if _, ok := used[flg.Name]; ok {
				continue
			}
			err := flg.Value.Set(fmt.Sprintf("%v", val))
			if err != nil {
				return fmt.Errorf("%s: %s", name, err)
			}
		} else if f, ok := flags.LookupFlag(name); ok {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("%s: expected boolean value; got %v", name, val)
			}
			flgs.SetFlag(f, b)
		} else {
			return fmt.Errorf("%s is not a config variable", name)
		}
	}

	return nil
}

func setFlags(args []string) error {
	for _, arg := range args {
		idx := strings.IndexByte(arg, '=')
		if idx < 0 {
			return fmt.Errorf("flag %s: expected name=bool", arg)
		}
		f, ok := flags.LookupFlag(arg[:idx])
		if !ok {
			return fmt.Errorf("flag %s: not found", arg[:idx])
		}
		b, err := strconv.ParseBool(arg[idx+1:])
		if err != nil {
			return fmt.Errorf("flag %s: %s", arg[:idx], err)
		}
		flgs.SetFlag(f, b)
	}
	return nil
}
