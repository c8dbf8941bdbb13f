/*
Copyright © 2021 the domcmc authors.
This file is part of domcmc.

domcmc is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

domcmc is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with domcmc.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cmd implements the domq command line interface for querying
// standard-file record collections.
package cmd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sebastiendfortier/domcmc"
	_ "github.com/sebastiendfortier/domcmc/internal/fstnc"
)

// Cfg holds the configuration, merged from flags, environment and an
// optional config file.
var Cfg *viper.Viper

var log = logrus.New()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	Cfg = viper.New()
	Cfg.SetEnvPrefix("DOMQ")
	Cfg.AutomaticEnv()

	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name:       "config",
			usage:      "config specifies the configuration file location.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "loglevel",
			usage:      "loglevel sets the logging verbosity (debug, info, warning, error).",
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "file",
			usage:      "file is the record collection to read. Mutually exclusive with dir.",
			shorthand:  "f",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "dir",
			usage:      "dir is a directory to search for a collection containing the variable.",
			shorthand:  "d",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "prefix",
			usage:      "prefix restricts the directory search to file names starting with it.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "suffix",
			usage:      "suffix restricts the directory search to file names ending with it.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "datev",
			usage:      "datev is the requested validity time in RFC3339 form; empty takes the first found.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "ip1s",
			usage:      "ip1s restricts the field to these encoded level identifiers.",
			defaultVal: []int{},
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "plevs",
			usage:      "plevs interpolates the field to these pressure levels [hPa], in the given order.",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "latlon",
			usage:      "latlon includes the geographic coordinates of every grid point in the output.",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "pressure",
			usage:      "pressure includes the pressure at every point of the field in the output.",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "etiket",
			usage:      "etiket filters records by production label.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "typvar",
			usage:      "typvar filters records by variable type tag.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "tmpdir",
			usage:      "tmpdir hosts the interpolation workspace; empty uses the system default.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "timeout",
			usage:      "timeout bounds the external interpolation tool run time.",
			defaultVal: domcmc.DefaultInterpTimeout,
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name:       "out",
			usage:      "out is the NetCDF file the assembled field is written to.",
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
	}

	for _, option := range options {
		for _, set := range option.flagsets {
			if set.Lookup(option.name) == nil {
				switch d := option.defaultVal.(type) {
				case string:
					set.StringP(option.name, option.shorthand, d, option.usage)
				case bool:
					set.BoolP(option.name, option.shorthand, d, option.usage)
				case []int:
					set.IntSliceP(option.name, option.shorthand, d, option.usage)
				case []string:
					set.StringSliceP(option.name, option.shorthand, d, option.usage)
				case time.Duration:
					set.DurationP(option.name, option.shorthand, d, option.usage)
				default:
					panic(fmt.Sprintf("unsupported option type %T for %s", d, option.name))
				}
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	Root.AddCommand(getCmd)
	Root.AddCommand(versionCmd)
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "domq",
	Short: "domq assembles meteorological fields from standard-file record collections.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile := Cfg.GetString("config"); cfgFile != "" {
			Cfg.SetConfigFile(cfgFile)
			if err := Cfg.ReadInConfig(); err != nil {
				return fmt.Errorf("reading configuration: %w", err)
			}
		}
		level, err := logrus.ParseLevel(Cfg.GetString("loglevel"))
		if err != nil {
			return err
		}
		log.SetLevel(level)
		return nil
	},
	DisableAutoGenTag: true,
}

var getCmd = &cobra.Command{
	Use:   "get [variable]",
	Short: "get assembles one field and writes it to a NetCDF file.",
	Long: `get locates the named variable (or the synthetic wind_vectors
composite) in a record collection, stacks its levels into a cube in
ascending level order, applies the requested decorations, and writes
the result out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := queryFromConfig(args[0])
		if err != nil {
			return err
		}
		out := Cfg.GetString("out")
		if out == "" {
			return fmt.Errorf("an output file must be given with --out")
		}
		field, err := domcmc.GetData(q)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"var":    q.VarName,
			"shape":  field.Values.Shape,
			"levels": field.Levels,
		}).Info("assembled field")
		if field.Yang != nil {
			log.Info("Yin-Yang field; the output holds the Yin half")
		}
		return field.WriteNetCDF(out)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version prints the version number.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("domq v%s\n", domcmc.Version)
	},
}

// queryFromConfig translates the merged configuration into a query.
func queryFromConfig(varName string) (*domcmc.Query, error) {
	q := domcmc.NewQuery(varName)
	q.FileName = Cfg.GetString("file")
	q.DirName = Cfg.GetString("dir")
	q.Prefix = Cfg.GetString("prefix")
	q.Suffix = Cfg.GetString("suffix")
	q.Etiket = Cfg.GetString("etiket")
	q.Typvar = Cfg.GetString("typvar")
	q.IP1s = Cfg.GetIntSlice("ip1s")
	q.LatLon = Cfg.GetBool("latlon")
	q.PresFromVar = Cfg.GetBool("pressure")
	q.TmpDir = Cfg.GetString("tmpdir")
	q.Timeout = Cfg.GetDuration("timeout")
	q.Log = log

	if d := Cfg.GetString("datev"); d != "" {
		t, err := time.Parse(time.RFC3339, d)
		if err != nil {
			return nil, fmt.Errorf("parsing datev: %w", err)
		}
		q.Datev = t
	}
	for _, s := range Cfg.GetStringSlice("plevs") {
		p, err := cast.ToFloat64E(s)
		if err != nil {
			return nil, fmt.Errorf("parsing pressure level %q: %w", s, err)
		}
		q.PresLevels = append(q.PresLevels, p)
	}
	return q, nil
}
