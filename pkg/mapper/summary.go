package mapper

import "github.com/augmentac/ff2api-postback/pkg/common"

// Summarize tallies mapping outcomes per API status. Failed is derived:
// everything that is not a success.
func Summarize(mappings []common.LoadIDMapping) common.MappingSummary {
	summary := common.MappingSummary{Total: len(mappings)}

	for _, mapping := range mappings {
		switch mapping.APIStatus {
		case common.StatusSuccess:
			summary.Success++
		case common.StatusNotFound:
			summary.NotFound++
		case common.StatusAuthFailed, common.StatusAccessForbidden:
			summary.AuthFailed++
		case common.StatusTimeout:
			summary.Timeout++
		case common.StatusConnectionError:
			summary.ConnectionError++
		case common.StatusLoadProcessingFailed:
			summary.LoadProcessingFailed++
		default:
			summary.OtherError++
		}
	}

	summary.Failed = summary.Total - summary.Success
	return summary
}
