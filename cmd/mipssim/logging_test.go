package main

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipssim/timing/pipeline"
)

var _ = ginkgo.Describe("Logging", func() {
	var stderr, trace *bytes.Buffer

	ginkgo.BeforeEach(func() {
		stderr = &bytes.Buffer{}
		trace = &bytes.Buffer{}
	})

	ginkgo.It("should keep errors on stderr while tracing to a file", func() {
		logger := slog.New(newLogHandler(stderr, trace, false))

		logger.Error("pipeline halted", "cycle", 3)
		logger.Info("simulation started")
		logger.Log(context.Background(), pipeline.LevelTrace, "commit", "pc", 4)

		Expect(stderr.String()).To(ContainSubstring("pipeline halted"))
		Expect(stderr.String()).NotTo(ContainSubstring("simulation started"))
		Expect(stderr.String()).NotTo(ContainSubstring("commit"))

		Expect(trace.String()).To(ContainSubstring(`"msg":"pipeline halted"`))
		Expect(trace.String()).To(ContainSubstring(`"msg":"simulation started"`))
		Expect(trace.String()).To(ContainSubstring(`"msg":"commit"`))
	})

	ginkgo.It("should show debug output on stderr when verbose", func() {
		logger := slog.New(newLogHandler(stderr, nil, true))

		logger.Debug("core created")
		logger.Log(context.Background(), pipeline.LevelTrace, "commit")

		Expect(stderr.String()).To(ContainSubstring("core created"))
		Expect(stderr.String()).NotTo(ContainSubstring("commit"))
	})

	ginkgo.It("should carry attributes to every handler", func() {
		logger := slog.New(newLogHandler(stderr, trace, false)).With("run", "loop")

		logger.Warn("slow")

		Expect(stderr.String()).To(ContainSubstring("run=loop"))
		Expect(trace.String()).To(ContainSubstring(`"run":"loop"`))
	})
})
