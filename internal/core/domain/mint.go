package domain

// Milestone is a discrete stage reported by the minting process.
type Milestone string

const (
	MilestoneStarted             Milestone = "started"
	MilestoneCheckingPayment     Milestone = "checking_payment"
	MilestonePaymentVerified     Milestone = "payment_verified"
	MilestoneCreatingToken       Milestone = "creating_token"
	MilestoneTokenCreated        Milestone = "token_created"
	MilestoneUploadingMetadata   Milestone = "uploading_metadata"
	MilestoneMetadataUploaded    Milestone = "metadata_uploaded"
	MilestoneSettingMetadata     Milestone = "setting_metadata"
	MilestoneRevokingAuthorities Milestone = "revoking_authorities"
	MilestoneTokensMinted        Milestone = "tokens_minted"
	MilestoneTokensSent          Milestone = "tokens_sent"
	MilestoneCompleted           Milestone = "completed"
)

// ProgressEvent is one milestone relayed to the user.
type ProgressEvent struct {
	Signature string    `json:"signature"`
	Milestone Milestone `json:"milestone"`
	Line      string    `json:"line,omitempty"`
}

// MintParams is the input handed to the external minting process.
type MintParams struct {
	Signature    string `json:"signature"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Description  string `json:"description"`
	Supply       uint64 `json:"totalSupply"`
	ImagePath    string `json:"imagePath"`
	UserWallet   string `json:"userWallet"`
	CustomSuffix string `json:"customEnding,omitempty"`
	Network      string `json:"network,omitempty"`
}

// MintParamsFrom builds process input from a frozen draft.
func MintParamsFrom(signature string, snap DraftSnapshot) MintParams {
	d := snap.Draft
	return MintParams{
		Signature:    signature,
		Name:         d.Token.Name,
		Symbol:       d.Token.Symbol,
		Description:  d.Token.Description,
		Supply:       d.Token.Supply,
		ImagePath:    d.Token.LogoRef,
		UserWallet:   d.SenderWallet,
		CustomSuffix: d.CustomSuffix,
	}
}
