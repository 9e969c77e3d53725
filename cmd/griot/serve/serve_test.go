package servecmder_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	servecmder "github.com/davidhonghikim/griot-sub000/cmd/griot/serve"
)

func TestServe(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Serve Command Suite")
}

func newCmd(args ...string) *cobra.Command {
	cmd := servecmder.NewServeCmd()
	cmd.PersistentFlags().Bool("debug", false, "")
	cmd.PersistentFlags().String("config-dir", GinkgoT().TempDir(), "")
	cmd.SetArgs(args)
	return cmd
}

var _ = Describe("NewServeCmd", func() {
	DescribeTable("registers flags with config defaults",
		func(name, def string) {
			f := servecmder.NewServeCmd().Flags().Lookup(name)
			Expect(f).NotTo(BeNil())
			Expect(f.DefValue).To(Equal(def))
		},
		Entry("listen", "listen", ":8081"),
		Entry("backend", "backend", "ollama"),
		Entry("model", "model", "llama3.2"),
		Entry("vector store", "vector-store-provider", "sqlite"),
		Entry("embedding dimensions", "embedding-dimensions", "768"),
		Entry("workers", "workers", "3"),
		Entry("no mcp", "no-mcp", "false"),
		Entry("watch", "watch", "false"),
		Entry("log file", "log-file", ""),
	)

	It("rejects positional arguments", func() {
		Expect(newCmd("extra").Execute()).To(HaveOccurred())
	})

	It("fails before listening when the pipeline cannot be built", func() {
		err := newCmd("--vector-store-provider", "memory", "--personas-provider", "bogus").Execute()
		Expect(err).To(MatchError(ContainSubstring("unsupported persona provider: bogus")))
	})

	It("reads settings from the environment", func() {
		GinkgoT().Setenv("GRIOT_EVENTS_PROVIDER", "carrier-pigeon")

		err := newCmd("--vector-store-provider", "memory", "--personas-provider", "memory").Execute()
		Expect(err).To(MatchError(ContainSubstring("unsupported events provider: carrier-pigeon")))
	})

	It("rejects malformed numeric settings", func() {
		GinkgoT().Setenv("GRIOT_RETRIEVAL_LIMIT", "many")

		err := newCmd().Execute()
		Expect(err).To(MatchError(ContainSubstring("resolving config")))
	})

	It("rejects watching a store that is not file backed", func() {
		err := newCmd("--vector-store-provider", "memory", "--personas-provider", "memory", "--watch").Execute()
		Expect(err).To(MatchError(ContainSubstring("watching personas requires the files provider")))
	})

	It("reads the watch setting from the environment", func() {
		GinkgoT().Setenv("GRIOT_PERSONAS_WATCH", "true")

		err := newCmd("--vector-store-provider", "memory", "--personas-provider", "memory").Execute()
		Expect(err).To(MatchError(ContainSubstring("watching personas requires the files provider")))
	})

	Describe("--log-file", func() {
		It("appends JSON records to the file as well as the terminal", func() {
			path := filepath.Join(GinkgoT().TempDir(), "griot.log")

			err := newCmd("--log-file", path, "--vector-store-provider", "memory", "--personas-provider", "bogus").Execute()
			Expect(err).To(HaveOccurred())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"msg":"starting griot"`))
			Expect(string(data)).To(ContainSubstring(`"personas_provider":"bogus"`))
			Expect(string(data)).To(ContainSubstring(`"source":`))
		})

		It("fails when the file cannot be opened", func() {
			path := filepath.Join(GinkgoT().TempDir(), "missing", "griot.log")

			err := newCmd("--log-file", path).Execute()
			Expect(err).To(MatchError(ContainSubstring("opening log file")))
		})
	})
})
