package templates

import _ "embed"

var (
	//go:embed resource/regionsPrompt.txt
	RegionsPrompt string
	//go:embed resource/stationRegionsPrompt.txt
	StationRegionsPrompt string
	//go:embed resource/stationsPrompt.txt
	StationsPrompt string
	//go:embed resource/noStations.txt
	NoStations string
	//go:embed resource/levelPrompt.txt
	LevelPrompt string
	//go:embed resource/hoursPrompt.txt
	HoursPrompt string
	//go:embed resource/invalidChoice.txt
	InvalidChoice string
	//go:embed resource/complete.txt
	Complete string
	//go:embed resource/existing.txt
	Existing string
	//go:embed resource/updated.txt
	Updated string
	//go:embed resource/status.txt
	Status string
	//go:embed resource/notRegistered.txt
	NotRegistered string
	//go:embed resource/stopped.txt
	Stopped string
	//go:embed resource/help.txt
	Help string
	//go:embed resource/unexpectedError.txt
	UnexpectedError string
	//go:embed resource/alert.txt
	Alert string
	//go:embed resource/benzeneAlert.txt
	BenzeneAlert string
	//go:embed resource/improved.txt
	Improved string
	//go:embed resource/allClear.txt
	AllClear string
	//go:embed resource/adviceModerate.txt
	AdviceModerate string
	//go:embed resource/adviceLow.txt
	AdviceLow string
	//go:embed resource/adviceVeryLow.txt
	AdviceVeryLow string
)
