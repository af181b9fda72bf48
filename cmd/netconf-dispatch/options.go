package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/damianoneill/ncdispatch/netconf/client"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// PasswordEnv names the environment variable holding the ssh password when --password is not given.
const PasswordEnv = "NETCONF_PASSWORD"

// Options holds the command line configuration. Yaml keys match the flag names.
type Options struct {
	RPCs         []string `yaml:"rpc"`
	Timeout      int      `yaml:"timeout"`
	SetupTimeout int      `yaml:"setup-timeout"`

	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Transport string `yaml:"transport"`

	Username                 string `yaml:"username"`
	Password                 string `yaml:"password"`
	SSHKey                   string `yaml:"ssh-key"`
	KnownHosts               string `yaml:"known-hosts"`
	InsecureSkipHostKeyCheck bool   `yaml:"insecure-skip-host-key-check"`

	CACerts  string `yaml:"ca-certs"`
	CertFile string `yaml:"certfile"`
	KeyFile  string `yaml:"keyfile"`

	DisableAutoLockCommitUnlock bool `yaml:"disable-auto-lock-commit-unlock"`
	Pretty                      bool `yaml:"pretty"`

	LogFile  string `yaml:"log-file"`
	LogLevel string `yaml:"log-level"`

	ConfigFile string `yaml:"-"`

	// explicit records the options set by a flag or the configuration file.
	explicit map[string]bool
}

var defaultOptions = Options{
	Timeout:      client.DefaultConfig.RequestTimeoutSecs,
	SetupTimeout: client.DefaultConfig.SetupTimeoutSecs,
	Host:         "localhost",
	Port:         830,
	Transport:    client.TransportSSH,
	Username:     "lab",
	Password:     "lab123",
	SSHKey:       "~/.ssh/id_ecdsa",
	KnownHosts:   "~/.ssh/known_hosts",
	LogLevel:     "NOTSET",
}

func (o *Options) bindFlags(fs *pflag.FlagSet) {
	d := defaultOptions
	fs.StringArrayVar(&o.RPCs, "rpc", nil, "RPC XML as a file name or an XML string, repeatable; read from stdin if not provided (use Ctrl-D to signal EOF)")
	fs.IntVar(&o.Timeout, "timeout", d.Timeout, "RPC response timeout in seconds")
	fs.IntVar(&o.SetupTimeout, "setup-timeout", d.SetupTimeout, "connection and hello exchange timeout in seconds")

	fs.StringVar(&o.Host, "host", d.Host, "NETCONF server host")
	fs.IntVar(&o.Port, "port", d.Port, "NETCONF server port")
	fs.StringVar(&o.Transport, "transport", d.Transport, "NETCONF transport, ssh or tls")

	fs.StringVar(&o.Username, "username", d.Username, "NETCONF client username")
	fs.StringVar(&o.Password, "password", d.Password, "NETCONF client password, defaults to $"+PasswordEnv+" when set")
	fs.StringVar(&o.SSHKey, "ssh-key", d.SSHKey, "NETCONF client private SSH key")
	fs.StringVar(&o.KnownHosts, "known-hosts", d.KnownHosts, "known hosts file used to verify the server host key")
	fs.BoolVar(&o.InsecureSkipHostKeyCheck, "insecure-skip-host-key-check", false, "accept any server host key")

	fs.StringVar(&o.CACerts, "ca-certs", "", "PEM file of certificate authorities trusted to sign the server certificate (tls)")
	fs.StringVar(&o.CertFile, "certfile", "", "client certificate PEM file (tls)")
	fs.StringVar(&o.KeyFile, "keyfile", "", "client private key PEM file (tls)")

	fs.BoolVar(&o.DisableAutoLockCommitUnlock, "disable-auto-lock-commit-unlock", false, "send edit-config without locking, committing and unlocking the candidate datastore")
	fs.BoolVar(&o.Pretty, "pretty", false, "indent reply XML")

	fs.StringVar(&o.LogFile, "log-file", "", "log file, stderr if not set")
	fs.StringVar(&o.LogLevel, "log-level", d.LogLevel, "log level, one of "+strings.Join(logLevelNames, "|"))

	fs.StringVar(&o.ConfigFile, "config", "", "YAML file of option defaults, keyed by flag name")
}

// resolve completes the options after flag parsing: values from the configuration file apply to the
// flags that were not given, the password falls back to the environment, and blanked values take
// their defaults.
func (o *Options) resolve(fs *pflag.FlagSet) error {
	o.explicit = map[string]bool{}
	fs.Visit(func(f *pflag.Flag) {
		o.explicit[f.Name] = true
	})

	if o.ConfigFile != "" {
		if err := o.applyConfigFile(fs); err != nil {
			return err
		}
	}

	if !o.explicit["password"] {
		if pw, ok := os.LookupEnv(PasswordEnv); ok {
			o.Password = pw
		}
	}

	if err := mergo.Merge(o, defaultOptions); err != nil {
		return errors.Wrap(err, "apply default options")
	}
	return o.validate()
}

func (o *Options) applyConfigFile(fs *pflag.FlagSet) error {
	data, err := os.ReadFile(o.ConfigFile)
	if err != nil {
		return errors.Wrap(err, "read configuration file")
	}

	values := map[string]interface{}{}
	if err = yaml.Unmarshal(data, &values); err != nil {
		return errors.Wrapf(err, "parse configuration file %s", o.ConfigFile)
	}

	for name, value := range values {
		f := fs.Lookup(name)
		if f == nil || name == "config" {
			return errors.Errorf("unknown option %q in configuration file %s", name, o.ConfigFile)
		}
		if o.explicit[name] {
			continue
		}
		items, ok := value.([]interface{})
		if !ok {
			items = []interface{}{value}
		}
		for _, item := range items {
			if err = f.Value.Set(fmt.Sprint(item)); err != nil {
				return errors.Wrapf(err, "option %q in configuration file %s", name, o.ConfigFile)
			}
		}
		o.explicit[name] = true
	}
	return nil
}

func (o *Options) validate() error {
	switch o.Transport {
	case client.TransportSSH, client.TransportTLS:
	default:
		return errors.Errorf("unsupported transport %q, expecting %s or %s", o.Transport, client.TransportSSH, client.TransportTLS)
	}
	if _, ok := logLevels[o.LogLevel]; !ok {
		return errors.Errorf("unsupported log level %q, expecting one of %s", o.LogLevel, strings.Join(logLevelNames, "|"))
	}
	if (o.CertFile == "") != (o.KeyFile == "") {
		return errors.New("--certfile and --keyfile must be given together")
	}
	if o.Timeout <= 0 || o.SetupTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	return nil
}

// clientConfig delivers the netconf client configuration.
func (o *Options) clientConfig() *client.Config {
	return &client.Config{SetupTimeoutSecs: o.SetupTimeout, RequestTimeoutSecs: o.Timeout}
}

// expandHome replaces a leading ~ with the home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "expand "+path)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
