// Package dialog implements the direct message dialogs new and returning members go through:
// the onboarding setup, the semester start group selection and the group selection they share.
package dialog
