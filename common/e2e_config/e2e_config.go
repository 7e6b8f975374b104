package e2e_config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"sync"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const ConfigDir = "/configurations"

// ServerInfo describes the free-brick inventory of one server.
type ServerInfo struct {
	Host      string   `yaml:"host"`
	Devices   []string `yaml:"devices"`
	BrickRoot []string `yaml:"brick_root"`
}

// ClientInfo describes a client host, windows clients need a platform tag.
type ClientInfo struct {
	Host      string `yaml:"host"`
	Platform  string `yaml:"platform" env-default:"linux"`
	SuperUser string `yaml:"super_user"`
}

// MountConfig is one logical mount entry, materialised num_of_mounts times.
type MountConfig struct {
	Protocol    string `yaml:"protocol"`
	Mountpoint  string `yaml:"mountpoint"`
	Server      string `yaml:"server"`
	Client      string `yaml:"client"`
	Volname     string `yaml:"volname"`
	Options     string `yaml:"options"`
	NumOfMounts int    `yaml:"num_of_mounts"`
	SmbUser     string `yaml:"smbuser"`
	SmbPasswd   string `yaml:"smbpasswd"`
}

// VolumeConfig is the requested shape of the volume under test. Zero counts
// are filled from the per-type defaults.
type VolumeConfig struct {
	Name            string            `yaml:"name"`
	VolType         string            `yaml:"voltype" env:"e2e_voltype" env-default:"distributed-replicated"`
	DistCount       int               `yaml:"dist_count"`
	ReplicaCount    int               `yaml:"replica_count"`
	ArbiterCount    int               `yaml:"arbiter_count"`
	DisperseCount   int               `yaml:"disperse_count"`
	RedundancyCount int               `yaml:"redundancy_count"`
	Transport       string            `yaml:"transport" env-default:"tcp"`
	Options         map[string]string `yaml:"options"`
	Quota           struct {
		Enable bool   `yaml:"enable"`
		Limit  string `yaml:"limit"`
		Path   string `yaml:"path" env-default:"/"`
	} `yaml:"quota"`
	Uss bool `yaml:"uss"`
}

// E2EConfig is the harness configuration structure
type E2EConfig struct {
	ConfigName string `yaml:"configName"`
	Platform   struct {
		// Name of the lab or CI environment the run executes in
		Name string `yaml:"name" env-default:"default"`
	} `yaml:"platform"`

	E2eRootDir string `yaml:"e2eRootDir" env:"e2e_root_dir"`
	// Run configuration
	ReportsDir string `yaml:"reportsDir" env:"e2e_reports_dir"`
	// Seed for the random choices made by fault injection, 0 derives the seed
	// from the suite name so that reruns of a suite repeat the same choices.
	Seed int64 `yaml:"seed" env:"e2e_seed"`
	// If set to true failing teardown steps leave the remaining resources in
	// place for post-mortem analysis.
	RetainOnFailure bool `yaml:"retainOnFailure" env-default:"false" env:"e2e_retain_on_failure"`

	// Cluster under test
	Mnode       string                `yaml:"mnode" env:"e2e_mnode"`
	Servers     []string              `yaml:"servers"`
	Clients     []string              `yaml:"clients"`
	ServersInfo map[string]ServerInfo `yaml:"all_servers_info"`
	ClientsInfo map[string]ClientInfo `yaml:"all_clients_info"`

	Volume VolumeConfig  `yaml:"volume"`
	Mounts []MountConfig `yaml:"mounts"`

	Gluster struct {
		EnableNfsGanesha     bool     `yaml:"enable_nfs_ganesha" env-default:"false"`
		NumOfNfsGaneshaNodes int      `yaml:"num_of_nfs_ganesha_nodes" env-default:"4"`
		Vips                 []string `yaml:"vips"`
	} `yaml:"gluster"`

	Dependencies struct {
		TestingTools struct {
			Arequal struct {
				Repo string `yaml:"repo"`
			} `yaml:"arequal"`
		} `yaml:"testing_tools"`
	} `yaml:"dependencies"`

	Transport struct {
		// Kind is one of ssh, agent or local
		Kind                  string `yaml:"kind" env:"e2e_transport" env-default:"ssh"`
		User                  string `yaml:"user" env-default:"root"`
		Port                  int    `yaml:"port" env-default:"22"`
		KeyFile               string `yaml:"keyFile" env:"e2e_ssh_key_file" env-default:"~/.ssh/id_rsa"`
		Password              string `yaml:"password" env:"e2e_ssh_password"`
		KnownHostsFile        string `yaml:"knownHostsFile" env:"e2e_ssh_known_hosts"`
		InsecureIgnoreHostKey bool   `yaml:"insecureIgnoreHostKey" env-default:"false"`
		AgentPort             string `yaml:"agentPort" env-default:"10012"`
		ConnectTimeout        string `yaml:"connectTimeout" env-default:"30s"`
		CommandTimeout        string `yaml:"commandTimeout" env-default:"0s"`
		Parallelism           int    `yaml:"parallelism" env-default:"16"`
	} `yaml:"transport"`

	UploadDir string `yaml:"uploadDir" env-default:"/usr/share/glustolibs/io/scripts"`
	// Local path of the generate-io binary uploaded to clients
	GenerateIOBinary string `yaml:"generateIOBinary" env:"e2e_generate_io_binary"`

	DHT struct {
		// HashMode local computes names hashes on the control host, remote
		// asks libglusterfs on a server.
		HashMode string `yaml:"hashMode" env-default:"local"`
	} `yaml:"dht"`

	Timeouts struct {
		Heal            string `yaml:"heal" env-default:"1200s"`
		HealInterval    string `yaml:"healInterval" env-default:"120s"`
		Rebalance       string `yaml:"rebalance" env-default:"300s"`
		DaemonOnline    string `yaml:"daemonOnline" env-default:"300s"`
		FixLayout       string `yaml:"fixLayout" env-default:"300s"`
		VolumeProcesses string `yaml:"volumeProcesses" env-default:"300s"`
		Glusterd        string `yaml:"glusterd" env-default:"120s"`
		IO              string `yaml:"io" env-default:"3600s"`
	} `yaml:"timeouts"`

	// Individual Test parameters
	AfrDataSelfHeal struct {
		NumFiles      int    `yaml:"numFiles" env-default:"100"`
		InitialSize   string `yaml:"initialSize" env-default:"1KiB"`
		OverwriteSize string `yaml:"overwriteSize" env-default:"10KiB"`
	} `yaml:"afrDataSelfHeal"`
	ClientQuorum struct {
		NumFiles int `yaml:"numFiles" env-default:"10"`
	} `yaml:"clientQuorum"`
	DhtRename struct {
		SrcName string `yaml:"srcName" env-default:"src"`
	} `yaml:"dhtRename"`
	RebalanceFixLayout struct {
		NumFiles int `yaml:"numFiles" env-default:"200"`
	} `yaml:"rebalanceFixLayout"`
	SnapshotRestore struct {
		NumFiles      int    `yaml:"numFiles" env-default:"100"`
		SnapName      string `yaml:"snapName" env-default:"S1"`
		GraphLoadWait string `yaml:"graphLoadWait" env-default:"10s"`
	} `yaml:"snapshotRestore"`
	QuotaAlertTime struct {
		HardLimit   string `yaml:"hardLimit" env-default:"100MiB"`
		FirstWrite  string `yaml:"firstWrite" env-default:"45MiB"`
		SecondWrite string `yaml:"secondWrite" env-default:"20MiB"`
		ShrinkTo    string `yaml:"shrinkTo" env-default:"35MiB"`
	} `yaml:"quotaAlertTime"`
}

var once sync.Once
var e2eConfig E2EConfig

// IsConfigured reports whether a configuration file has been named, suites
// use it to skip when run outside a lab.
func IsConfigured() bool {
	_, ok := os.LookupEnv("e2e_config_file")
	return ok
}

// LoadConfig reads a configuration file, applies environment overrides and
// defaults. An optional env-file named by e2e_env_file is loaded first.
func LoadConfig(configFile string) (E2EConfig, error) {
	var cfg E2EConfig
	if envFile, ok := os.LookupEnv("e2e_env_file"); ok {
		if err := godotenv.Load(envFile); err != nil {
			return cfg, fmt.Errorf("loading env file %s: %v", envFile, err)
		}
	}
	if err := cleanenv.ReadConfig(configFile, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Mnode == "" && len(cfg.Servers) != 0 {
		cfg.Mnode = cfg.Servers[0]
	}
	return cfg, nil
}

// This function is called early from junit and various bits have not been initialised yet
// so we cannot use logf or Expect instead we use fmt.Print... and panic.
func GetConfig() E2EConfig {
	var err error
	e2eRootDir, okE2eRootDir := os.LookupEnv("e2e_root_dir")
	once.Do(func() {
		// - if OS envvar e2e_config_file is an absolute path, that file is used
		// - else a file of the same name in the configuration directory
		// A configuration file *MUST* be specified.
		value, ok := os.LookupEnv("e2e_config_file")
		if !ok {
			panic("configuration file not specified, use env var e2e_config_file")
		}
		configFile := value
		if !path.IsAbs(value) {
			configFile = path.Clean(e2eRootDir + ConfigDir + "/" + value)
		}
		fmt.Printf("Using configuration file %s\n", configFile)
		e2eConfig, err = LoadConfig(configFile)
		if err != nil {
			panic(fmt.Sprintf("%v", err))
		}

		// The environment variable overrides the configuration setting.
		if okE2eRootDir {
			if e2eConfig.E2eRootDir != "" && e2eRootDir != e2eConfig.E2eRootDir {
				fmt.Printf("overriding configuration e2e root dir from %s to %s\n", e2eConfig.E2eRootDir, e2eRootDir)
			}
			e2eConfig.E2eRootDir = e2eRootDir
		}

		if e2eConfig.Mnode == "" {
			panic("Configuration error: neither mnode nor servers are specified")
		}

		if e2eConfig.E2eRootDir != "" {
			cfgBytes, _ := yaml.Marshal(e2eConfig)
			cfgUsedFile := path.Clean(e2eConfig.E2eRootDir + "/artifacts/used-" + e2eConfig.ConfigName + "-" + e2eConfig.Platform.Name + ".yaml")
			err = ioutil.WriteFile(cfgUsedFile, cfgBytes, 0644)
			if err == nil {
				fmt.Printf("Resolved config written to %s\n", cfgUsedFile)
			}
		}
	})

	return e2eConfig
}

// Duration parses a duration setting, falling back to def for empty or
// malformed values.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		fmt.Printf("invalid duration %q, using %v\n", value, def)
		return def
	}
	return d
}
