package types

import (
	"fmt"
	"strings"
)

type TurbModel uint8

const (
	TURB_None TurbModel = iota
	TURB_SA
	TURB_SA_NEG
	TURB_SST
)

var (
	TurbModelNames = map[string]TurbModel{
		"sa":        TURB_SA,
		"sa_neg":    TURB_SA_NEG,
		"saneg":     TURB_SA_NEG,
		"sa-neg":    TURB_SA_NEG,
		"sst":       TURB_SST,
		"menter":    TURB_SST,
		"kw-sst":    TURB_SST,
		"komegasst": TURB_SST,
	}
	TurbModelPrintNames = []string{"None", "Spalart Allmaras", "Spalart Allmaras (negative)",
		"Menter SST"}
)

func (tm TurbModel) Print() (txt string) {
	if int(tm) >= len(TurbModelPrintNames) {
		return fmt.Sprintf("TurbModel(%d)", tm)
	}
	txt = TurbModelPrintNames[tm]
	return
}

// NumVars is the number of transported turbulence scalars for the model.
func (tm TurbModel) NumVars() int {
	switch tm {
	case TURB_SA, TURB_SA_NEG:
		return 1
	case TURB_SST:
		return 2
	}
	return 0
}

func ParseTurbModel(label string) (tm TurbModel, err error) {
	var ok bool
	if tm, ok = TurbModelNames[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unable to use turbulence model named %s", label)
	}
	return
}

func NewTurbModel(label string) (tm TurbModel) {
	var err error
	if tm, err = ParseTurbModel(label); err != nil {
		panic(err)
	}
	return
}
