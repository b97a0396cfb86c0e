//go:build cgo && netlib
// +build cgo,netlib

package utils

/*
#cgo LDFLAGS: -lopenblas -lgfortran -lm -lpthread
#include <cblas.h>
*/
import "C"

import (
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/blas/blas64"
	netblas "gonum.org/v1/netlib/blas/netlib"
)

// The dense coarsest level factorization goes through blas64, which is
// switched to the system BLAS when built with the netlib tag.
func init() {
	blas64.Use(netblas.Implementation{})
	logrus.Debug("Using netlib to accelerate BLAS")
}
