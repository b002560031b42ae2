package handlers

var StatusFor = statusFor
