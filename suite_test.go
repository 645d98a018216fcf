package proxyscraperchecker

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestProxyScraperChecker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "proxyscraperchecker")
}
