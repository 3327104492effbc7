package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	raven "github.com/getsentry/raven-go"

	"github.com/ndlib/fedsword/fedora"
	"github.com/ndlib/fedsword/server"
	"github.com/ndlib/fedsword/store"
)

// config holds the values read from the configuration file. Zero values
// fall back to the server's defaults.
type config struct {
	Port           string
	PProfPort      string
	Fedora         string // base URL of the repository's web services
	FedoraExternal string // public URL of the repository, if different
	PIDNamespace   string
	CacheDir       string
	Entries        string // storage location for entry documents
	Mysql          string
	External       string // public base URL of this service
	Treatment      string
	PolicyFile     string
	SentryDSN      string
	Timeout        int // backend timeout in seconds
}

func main() {
	var (
		configFile  = flag.String("config-file", "", "location of the configuration file")
		showVersion = flag.Bool("version", false, "display the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("fedsword version %s\n", server.Version)
		return
	}

	conf := config{
		Treatment: "Stored in the repository as a new object",
	}
	if *configFile != "" {
		log.Println("Reading config file", *configFile)
		if _, err := toml.DecodeFile(*configFile, &conf); err != nil {
			log.Fatalln("Error parsing config file:", err)
		}
	}

	if conf.SentryDSN != "" {
		raven.SetDSN(conf.SentryDSN)
	}
	if conf.Fedora == "" {
		log.Fatalln("No repository given. Set fedora in the config file.")
	}

	var policy server.Policy
	if conf.PolicyFile != "" {
		var err error
		policy, err = server.NewListPolicyFile(conf.PolicyFile)
		if err != nil {
			log.Fatalln("Error reading policy file:", err)
		}
	}

	var entries *server.EntryCache
	if conf.Entries != "" {
		location := conf.Entries
		if parselocation(location, "entries") == nil {
			log.Fatalln("Could not understand entry location", location)
		}
		// each collection gets its own store under the entries/ prefix
		entries = server.NewEntryCache(func(collection string) (store.Store, error) {
			s := parselocation(location, path.Join("entries", collection))
			if s == nil {
				return nil, fmt.Errorf("cannot open entry store at %s", location)
			}
			return s, nil
		})
	}

	srv := &server.RESTServer{
		PortNumber: conf.Port,
		PProfPort:  conf.PProfPort,
		Fedora: &fedora.Remote{
			HostURL:      conf.Fedora,
			ExternalURL:  conf.FedoraExternal,
			PIDNamespace: conf.PIDNamespace,
			Timeout:      time.Duration(conf.Timeout) * time.Second,
		},
		Policy:      policy,
		CacheDir:    conf.CacheDir,
		MySQL:       conf.Mysql,
		ExternalURL: conf.External,
		Treatment:   conf.Treatment,
		Entries:     entries,
	}

	// set up signal handlers
	sig := make(chan os.Signal, 5)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Println("---Received signal", s)
		srv.Stop()
	}()

	if err := srv.Run(); err != nil {
		log.Fatalln(err)
	}
}
