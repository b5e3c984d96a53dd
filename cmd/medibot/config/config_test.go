package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	medibotcmder "github.com/papercomputeco/medibot/cmd/medibot"
	configcmder "github.com/papercomputeco/medibot/cmd/medibot/config"
	"github.com/papercomputeco/medibot/pkg/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, list and init subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list", "init"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := medibotcmder.NewMedibotCmd()
		out = &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "medibot-config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("config", "set", "generation.provider", "anthropic")).To(Succeed())

			_, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(ContainSubstring("generation.provider"))
		})

		It("rejects unknown keys", func() {
			Expect(run("config", "set", "invalid_key", "value")).NotTo(Succeed())
		})

		It("requires exactly two arguments", func() {
			Expect(run("config", "set", "generation.provider")).NotTo(Succeed())
		})

		It("rejects invalid uint values", func() {
			Expect(run("config", "set", "embedding.dimensions", "not-a-number")).NotTo(Succeed())
		})

		It("rejects malformed durations", func() {
			Expect(run("config", "set", "session.max_age", "a while")).NotTo(Succeed())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("config", "set", "retrieval.collection", "first_aid")).To(Succeed())
			Expect(run("config", "get", "retrieval.collection")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("first_aid"))
		})

		It("reports the default when the file has no value", func() {
			Expect(run("config", "get", "server.listen")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(":8000"))
		})

		It("rejects unknown keys", func() {
			Expect(run("config", "get", "invalid_key")).NotTo(Succeed())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key", func() {
			Expect(run("config", "list")).To(Succeed())
			for _, key := range config.ValidConfigKeys() {
				Expect(out.String()).To(ContainSubstring(key))
			}
		})

		It("masks API keys", func() {
			Expect(run("config", "set", "generation.api_key", "sk-very-secret-1234")).To(Succeed())
			Expect(run("config", "list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`"****1234"`))
			Expect(out.String()).NotTo(ContainSubstring("very-secret"))
		})

		It("rejects any arguments", func() {
			Expect(run("config", "list", "extra")).NotTo(Succeed())
		})
	})

	Describe("init subcommand", func() {
		It("writes the preset and leaves an existing file alone", func() {
			Expect(run("config", "init", "--preset", "ollama")).To(Succeed())

			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			value, err := cfger.GetConfigValue("generation.provider")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("ollama"))

			Expect(run("config", "init", "--preset", "openai")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Already initialized"))
			value, err = cfger.GetConfigValue("generation.provider")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("ollama"))

			Expect(run("config", "init", "--preset", "openai", "--force")).To(Succeed())
			value, err = cfger.GetConfigValue("generation.provider")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("openai"))
		})

		It("rejects unknown presets", func() {
			Expect(run("config", "init", "--preset", "abacus")).NotTo(Succeed())
		})
	})
})
