// Package imagefile acquires user-chosen image files and prepares them for the
// pose service.
//
// An Image keeps the declared file name, a sniffed MIME type and a way to reopen
// its content. EncodeBase64 produces the bare payload sent in request envelopes
// and Preview produces the data URL shown while a request is pending. Both read
// the whole file in one shot; read failures are tagged with services.ErrEncoding.
package imagefile
