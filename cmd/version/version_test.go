package versioncmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	versioncmder "github.com/papercomputeco/chatstream/cmd/version"
	"github.com/papercomputeco/chatstream/pkg/utils"
)

var _ = Describe("version command", func() {
	run := func(args ...string) string {
		var out bytes.Buffer
		cmd := versioncmder.NewVersionCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		Expect(cmd.Execute()).To(Succeed())
		return out.String()
	}

	It("prints the build description", func() {
		Expect(run()).To(Equal(utils.VersionInfo()))
		Expect(run()).To(ContainSubstring("Version: " + utils.Version))
	})

	It("prints only the version with --short", func() {
		Expect(run("--short")).To(Equal(utils.Version + "\n"))
	})
})
