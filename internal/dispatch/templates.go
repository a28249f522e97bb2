package dispatch

var letterTemplates = map[string]string{
	"a6":    "9286a7db-a316-4103-a1c7-7bc1fdbbaa81",
	"a9":    "6b474e4a-28be-425b-8e90-f343159db5d6",
	"af1":   "017b664c-2776-497b-ad6e-b25b8a365ae0",
	"af2":   "017b664c-2776-497b-ad6e-b25b8a365ae0",
	"af3":   "017b664c-2776-497b-ad6e-b25b8a365ae0",
	"bs1":   "3dc53e2c-7e90-4e5f-95ef-8e7a98a6ee55",
	"bs2":   "228746a3-a445-412d-995e-ae60af86b63d",
	"fn14":  "08a7256f-921c-4cff-a4ef-70d50e2b1847",
	"rd1":   "ed08b8c0-dcd6-4cd4-9798-779189e0abe8",
	"rd2":   "7bc45244-1545-4978-9a01-926d1291b1df",
	"ri2":   "d17bb689-52d1-4d73-a501-9955282cfe2e",
	"ri3":   "473de8af-c59f-4b7e-8e12-240450ec3fb4",
	"rr1":   "f93687ad-d1e3-4577-83e9-1f5db0748d38",
	"rr2":   "d43958ef-4a93-4cd8-abda-c4001785e740",
	"rr3":   "19610ca0-0225-423a-8f83-729be739be66",
	"ff2":   "3bbac4aa-dc74-47f3-89f8-64e510cadb7c",
	"ff3":   "972f67d4-7323-47a8-9bf9-a46fa4ad3700",
	"ff4":   "d00c3b14-e23f-455d-96bc-adb36f21fc36",
	"paspr": "27db7363-540f-45bd-9059-da763e20a664",
}

var replyToAddresses = map[string]string{
	"HW":      "9b1dfc66-8ccb-4db8-b4e7-17f03f487874",
	"PFA LAY": "27e5deb5-8ea0-4d91-83d1-ae4145c351f9",
	"PFA PRO": "3e6753b7-6602-4363-8c9a-c88d02b239ba",
	"PFA PA":  "d8b4e115-5688-4161-82ca-82a93344a21f",
	"FINANCE": "f1e5faf6-e6aa-4beb-b6b8-cfa418482653",
}

// TemplateFor returns the email template of a letter type. Unknown types have
// no template; Notify decides what to do with the request.
func TemplateFor(letterType string) (string, bool) {
	id, ok := letterTemplates[letterType]
	return id, ok
}

// ReplyToFor returns the reply-to address id of a reply-to type.
func ReplyToFor(replyToType string) (string, bool) {
	id, ok := replyToAddresses[replyToType]
	return id, ok
}
