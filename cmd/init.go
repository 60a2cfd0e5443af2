package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dayuer/onebot-bridge/internal/config"
	"github.com/dayuer/onebot-bridge/internal/platform"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config and a sample platform fixture",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func sampleFixture() platform.Fixture {
	return platform.Fixture{
		Self:    platform.SelfInfo{UID: "u_self", Uin: 10000, Nick: "bridge"},
		Friends: []platform.User{{UID: "u_friend", Uin: 10001, Nick: "friend"}},
		Groups: []platform.FixtureGroup{{
			Group: platform.Group{GroupID: 20000, Name: "sandbox", MaxMember: 200},
			Members: []platform.GroupMember{
				{UID: "u_self", Uin: 10000, Nick: "bridge", Role: platform.RoleOwner},
				{UID: "u_friend", Uin: 10001, Nick: "friend"},
			},
		}},
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
		return nil
	}

	cfg := config.DefaultConfig()
	cfg.HTTP.Enable = true
	cfg.WS.Enable = true
	cfg.Platform.Fixture = filepath.Join(filepath.Dir(path), "fixture.yaml")

	if _, err := os.Stat(cfg.Platform.Fixture); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(cfg.Platform.Fixture), 0755); err != nil {
			return err
		}
		data, err := yaml.Marshal(sampleFixture())
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.Platform.Fixture, data, 0644); err != nil {
			return fmt.Errorf("writing fixture: %w", err)
		}
		fmt.Printf("✓ Created fixture at %s\n", cfg.Platform.Fixture)
	}

	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("creating config: %w", err)
	}
	fmt.Printf("✓ Created config at %s\n", path)
	return nil
}
