package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/davidhonghikim/griot-sub000/cmd/griot/init"
	"github.com/davidhonghikim/griot-sub000/pkg/config"
)

func TestInit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Init Command Suite")
}

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "griot-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("creates the .griot directory", func() {
		Expect(run()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".griot"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
		Expect(out.String()).To(ContainSubstring("Initialized .griot directory"))
	})

	It("is idempotent", func() {
		Expect(run()).To(Succeed())
		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Already initialized"))
	})

	It("writes the preset config", func() {
		Expect(run("--preset", "vllm")).To(Succeed())

		data, err := os.ReadFile(filepath.Join(tmpDir, ".griot", "config.toml"))
		Expect(err).NotTo(HaveOccurred())

		var cfg config.Config
		Expect(toml.Unmarshal(data, &cfg)).To(Succeed())
		Expect(cfg.Generation.Backend).To(Equal("vllm"))
		Expect(cfg.Generation.Target).To(Equal("http://localhost:8000/v1"))
		Expect(cfg.Embedding.Provider).To(Equal("openai"))
	})

	It("rejects unknown presets without creating anything", func() {
		err := run("--preset", "mainframe")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))

		_, statErr := os.Stat(filepath.Join(tmpDir, ".griot"))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})
})
