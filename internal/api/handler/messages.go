package handler

import (
	"fmt"

	"github.com/gf3d/gf3dserver/internal/api/models"
)

// Client error messages. Existing clients match on the text, including the
// leading "400" and trailing spaces.
const (
	MsgDatabaseNotFound = "400 -- database name not found."
	MsgNoStationFiles   = "400 -- no station files found."
	MsgSubsetFailed     = "400 -- An error was encountered when creating the subset.\nThe exception is printed below: \n\n"
)

var missingMessages = map[string]string{
	models.ParamDB:        `400 - request missing "db=<database-name>" `,
	models.ParamLatitude:  `400 - request missing "latitude=<latitude>" `,
	models.ParamLongitude: `400 - request missing "longitude=<longitude>" `,
	models.ParamDepth:     `400 - request missing "depth=<depth>"`,
	models.ParamRadius:    `400 - request missing "radius=<radius>"`,
	models.ParamNGLL:      `400 - request missing "NGLL=<NGLL>"`,
}

// ParamMessage renders a parameter error as a client message.
func ParamMessage(perr *models.ParamError) string {
	if perr.Missing {
		if msg, ok := missingMessages[perr.Name]; ok {
			return msg
		}
		return fmt.Sprintf(`400 - request missing "%s=<%s>"`, perr.Name, perr.Name)
	}
	return fmt.Sprintf(`400 - invalid "%s=%s": %s`, perr.Name, perr.Value, perr.Reason)
}

// SubsetFailedMessage renders a failed subset extraction.
func SubsetFailedMessage(message, stack string) string {
	return MsgSubsetFailed + message + " \n\n" + stack + "\n\n"
}
