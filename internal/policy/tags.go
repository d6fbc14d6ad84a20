package policy

import "github.com/suyashkumar/dicom/pkg/tag"

// criticalTags must always be actively handled. The allow-list can never
// promote these to Keep: the Accession Number carries the join key and every
// other entry directly identifies a patient, physician or device.
var criticalTags = map[tag.Tag]Action{
	tag.AccessionNumber: ReplaceLookup,

	// Required by the standard, so emptied rather than removed.
	tag.PatientName:            ReplaceDummy,
	tag.PatientID:              ReplaceDummy,
	tag.PatientBirthDate:       ReplaceDummy,
	tag.ReferringPhysicianName: ReplaceDummy,

	tag.PatientBirthTime:        Remove,
	tag.OtherPatientIDs:         Remove,
	tag.OtherPatientNames:       Remove,
	tag.OtherPatientIDsSequence: Remove,
	tag.PerformingPhysicianName: Remove,
	tag.OperatorsName:           Remove,
	tag.InstitutionName:         Remove,
	tag.InstitutionAddress:      Remove,
	tag.StationName:             Remove,
	tag.DeviceSerialNumber:      Remove,
}

// builtinTags are explicit rules for tags the default Remove would break.
// Required tags are emptied, the pixel module is kept intact so the image
// remains renderable, and structural sequences are recursed.
var builtinTags = map[tag.Tag]Action{
	// SOP identity and modality carry no patient data and keep the output
	// addressable. Study and series identity is emptied below.
	tag.SOPClassUID:    Keep,
	tag.SOPInstanceUID: Keep,
	tag.Modality:       Keep,

	// Required tags without patient data: emptied.
	tag.StudyDate:          ReplaceDummy,
	tag.StudyTime:          ReplaceDummy,
	tag.PatientSex:         ReplaceDummy,
	tag.StudyID:            ReplaceDummy,
	tag.SeriesNumber:       ReplaceDummy,
	tag.InstanceNumber:     ReplaceDummy,
	tag.PatientOrientation: ReplaceDummy,
	tag.StudyInstanceUID:   ReplaceDummy,
	tag.SeriesInstanceUID:  ReplaceDummy,

	// Image pixel module.
	tag.SamplesPerPixel:           Keep,
	tag.PhotometricInterpretation: Keep,
	tag.PlanarConfiguration:       Keep,
	tag.Rows:                      Keep,
	tag.Columns:                   Keep,
	tag.PixelAspectRatio:          Keep,
	tag.BitsAllocated:             Keep,
	tag.BitsStored:                Keep,
	tag.HighBit:                   Keep,
	tag.PixelRepresentation:       Keep,
	tag.SmallestImagePixelValue:   Keep,
	tag.LargestImagePixelValue:    Keep,
	tag.PixelPaddingRangeLimit:    Keep,

	tag.RedPaletteColorLookupTableDescriptor:   Keep,
	tag.GreenPaletteColorLookupTableDescriptor: Keep,
	tag.BluePaletteColorLookupTableDescriptor:  Keep,
	tag.RedPaletteColorLookupTableData:         Keep,
	tag.GreenPaletteColorLookupTableData:       Keep,
	tag.BluePaletteColorLookupTableData:        Keep,

	tag.ICCProfile: Keep,
	// Color Space; the generated dictionary carries no constant for it.
	{Group: 0x0028, Element: 0x2002}: Keep,

	tag.PixelData: CleanPixelData,

	// Structural sequences: items are cleaned recursively under the same
	// policy, so nested identifying attributes cannot survive.
	tag.AnatomicRegionSequence:  CleanSequence,
	tag.ReferencedImageSequence: CleanSequence,
	tag.SourceImageSequence:     CleanSequence,
	tag.ProcedureCodeSequence:   CleanSequence,
}

// fileMetaKeep is the fixed set of group 0x0002 attributes every valid file
// carries; everything else in the file meta group is removed.
var fileMetaKeep = map[tag.Tag]bool{
	tag.FileMetaInformationGroupLength: true,
	tag.FileMetaInformationVersion:     true,
	tag.MediaStorageSOPClassUID:        true,
	tag.MediaStorageSOPInstanceUID:     true,
	tag.TransferSyntaxUID:              true,
	tag.ImplementationClassUID:         true,
	tag.ImplementationVersionName:      true,
}

// MarkerTags are the two attributes every pseudonymized output carries.
var MarkerTags = []tag.Tag{
	tag.PatientIdentityRemoved,
	tag.DeidentificationMethod,
}
